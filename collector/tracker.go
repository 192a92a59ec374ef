package collector

import (
  "sync"
  "time"

  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/rs/zerolog/log"
)

const DefaultDeviceTimeout = 60 * time.Second

type observation struct {
  reading device.Reading
  lastSeen time.Time
}

// Tracker keeps the last valid reading of every device and decides whether a device is still
// connected, i.e. whether it has been heard from within DeviceTimeout.
type Tracker struct {
  DeviceTimeout time.Duration

  now func() time.Time

  mu sync.Mutex
  devices []device.Device
  observations map[device.Device]observation

  updates chan device.Device
}

func NewTracker(devices []device.Device, deviceTimeout time.Duration) *Tracker {
  if deviceTimeout <= 0 {
    deviceTimeout = DefaultDeviceTimeout
  }

  return &Tracker{
    DeviceTimeout: deviceTimeout,
    now: time.Now,
    devices: devices,
    observations: make(map[device.Device]observation, len(devices)),
    updates: make(chan device.Device, len(devices) + 1),
  }
}

func (t *Tracker) Devices() []device.Device {
  return t.devices
}

// Observe records a freshly decoded reading. Never blocks.
func (t *Tracker) Observe(dev device.Device, r device.Reading) {
  t.mu.Lock()
  t.observations[dev] = observation{
    reading: r,
    lastSeen: t.now().UTC(),
  }
  t.mu.Unlock()

  select {
  case t.updates <- dev:
  default:
    log.Trace().Stringer("Device", dev).Msg("tracker: update queue full, dropping notification")
  }
}

// Seed records readings collected outside of the tracker (e.g. the startup collection).
func (t *Tracker) Seed(readings map[device.Device]device.Reading) {
  for dev, r := range readings {
    t.Observe(dev, r)
  }
}

// Updates delivers devices that received a new reading. Notifications are coalesced when the
// consumer is slow.
func (t *Tracker) Updates() <-chan device.Device {
  return t.updates
}

func (t *Tracker) stateLocked(dev device.Device, now time.Time) (s model.State) {
  obs, ok := t.observations[dev]

  if !ok {
    s.Quality = device.QualityDisconnected
    return s
  }

  s.HasReading = true
  s.Reading = obs.reading
  s.LastSeen = obs.lastSeen
  s.Connected = now.Sub(obs.lastSeen) <= t.DeviceTimeout

  if s.Connected {
    s.Quality = obs.reading.Quality()
  } else {
    s.Quality = device.QualityDisconnected
  }

  return s
}

func (t *Tracker) State(dev device.Device) model.State {
  t.mu.Lock()
  defer t.mu.Unlock()

  return t.stateLocked(dev, t.now().UTC())
}

// Snapshot returns the state of every tracked device, including devices never heard from.
func (t *Tracker) Snapshot() map[device.Device]model.State {
  t.mu.Lock()
  defer t.mu.Unlock()

  now := t.now().UTC()
  out := make(map[device.Device]model.State, len(t.devices))

  for _, dev := range t.devices {
    out[dev] = t.stateLocked(dev, now)
  }

  return out
}
