package collector

import (
  "errors"
  "strings"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/rs/zerolog/log"
)

const (
  advertisementResultDecoded = "decoded"
  advertisementResultInvalid = "invalid"
  advertisementResultIgnored = "ignored"
)

var advertisementsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
  Name: "dinuso_exporter_advertisements_total",
  Help: "Number of BLE advertisements received, by decoding outcome.",
}, []string{"result"})

func RegisterMetrics(reg prometheus.Registerer) {
  reg.MustRegister(advertisementsCounter)
}

// dispatcher routes advertisements to the configured device they belong to.
type dispatcher struct {
  byAddr map[string]device.Device
  anyAddr []device.Device
}

func newDispatcher(devices []device.Device) *dispatcher {
  d := &dispatcher{
    byAddr: make(map[string]device.Device),
  }

  for _, dev := range devices {
    if device.MatchesAnyAddress(dev) {
      d.anyAddr = append(d.anyAddr, dev)
    } else {
      d.byAddr[strings.ToLower(dev.Addr().String())] = dev
    }
  }

  return d
}

func advertisementAddr(a ble.Advertisement) string {
  if addr := a.Addr(); addr != nil {
    return strings.ToLower(addr.String())
  }

  return ""
}

// handle decodes the advertisement on behalf of the device it belongs to. A nil device is
// returned when the advertisement is not for us.
func (d *dispatcher) handle(a ble.Advertisement) (device.Device, device.Reading, error) {
  addr := advertisementAddr(a)
  candidates := d.anyAddr

  if dev, ok := d.byAddr[addr]; ok {
    candidates = []device.Device{dev}
  }

  for _, dev := range candidates {
    reading, err := dev.ParseAdvertisement(a)

    if errors.Is(err, device.ErrNoPayload) {
      continue
    }

    log.Trace().
      Err(err).
      Stringer("Device", dev).
      Str("Address", addr).
      Int("RSSI", a.RSSI()).
      Interface("ServiceData", a.ServiceData()).
      Stringer("Reading", reading).
      Msg("dispatcher: parsed device advertisement")

    if err != nil {
      advertisementsCounter.WithLabelValues(advertisementResultInvalid).Inc()
    } else {
      advertisementsCounter.WithLabelValues(advertisementResultDecoded).Inc()
    }

    return dev, reading, err
  }

  advertisementsCounter.WithLabelValues(advertisementResultIgnored).Inc()

  return nil, device.Reading{}, nil
}
