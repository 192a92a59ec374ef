package main

import (
  "context"
  "fmt"
  "sort"
  "strings"
  "sync"

  "github.com/rs/zerolog/log"
  "golang.org/x/exp/maps"

  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/collector"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/device/dinuso"
  "github.com/robertof/go-dinuso-exporter/utils"
)

type discoveredProbe struct {
  name string
  rssi int
  services map[string]bool
  reading device.Reading
  hasReading bool
}

type probeDiscovery struct {
  mu sync.Mutex
  probes map[string]*discoveredProbe
  decoder *dinuso.Device
}

func newProbeDiscovery() *probeDiscovery {
  return &probeDiscovery{
    probes: make(map[string]*discoveredProbe),
    decoder: dinuso.NewDevice("", nil),
  }
}

func (d *probeDiscovery) onAdvertisement(a ble.Advertisement) {
  if a.Addr() == nil {
    return
  }

  addr := strings.ToUpper(a.Addr().String())

  d.mu.Lock()
  defer d.mu.Unlock()

  info, known := d.probes[addr]

  // scan responses carrying the name don't carry the payload, merge them into known probes.
  if !known && !dinuso.IsProbeAdvertisement(a) {
    return
  }

  if !known {
    info = &discoveredProbe{services: make(map[string]bool)}
    d.probes[addr] = info
  }

  if info.name == "" {
    info.name = a.LocalName()
  }

  info.rssi = a.RSSI()

  for _, uuid := range a.Services() {
    info.services[uuid.String()] = true
  }

  if reading, err := d.decoder.ParseAdvertisement(a); err == nil {
    info.reading = reading
    info.hasReading = true
  }

  log.Debug().
    Str("Addr", addr).
    Str("Name", a.LocalName()).
    Int("RSSI", a.RSSI()).
    Strs("Services", maps.Keys(info.services)).
    Interface("ServiceData", a.ServiceData()).
    Msg("Received probe advertisement")
}

// suggestions returns one ready-to-use device flag per probe found, sorted by address.
func (d *probeDiscovery) suggestions() []string {
  d.mu.Lock()
  defer d.mu.Unlock()

  addrs := maps.Keys(d.probes)
  sort.Strings(addrs)

  out := make([]string, 0, len(addrs))

  for _, addr := range addrs {
    name := d.probes[addr].name
    if name == "" || strings.ContainsAny(name, ",=") {
      name = dinuso.DefaultName(addr)
    }

    out = append(out, fmt.Sprintf("-dinuso addr=%s,name=%s", addr, name))
  }

  return out
}

func doDeviceDiscovery(cfg config) {
  log.Info().
    Dur("DurationSec", cfg.DiscoveryDuration).
    Msg("Starting in device discovery mode - looking for DINUSO probes...")

  handle, err := ble.Init(cfg.BluetoothDeviceId, ble.FlagScanTypeActive)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  defer handle.Stop()

  ctx := ble.WrapContextWithSigHandler(
    context.WithTimeout(
      context.Background(),
      cfg.DiscoveryDuration,
    ),
  )

  discovery := newProbeDiscovery()

  if err := runDiscovery(ctx, handle, discovery); err != nil {
    log.Fatal().Err(err).Msg("Failed to initiate scan")
  }

  discovery.mu.Lock()
  log.Info().Int("Found", len(discovery.probes)).Msg("Finished device discovery")

  for addr, probe := range discovery.probes {
    event := log.Info().
      Str("Addr", addr).
      Str("Name", probe.name).
      Int("RSSI", probe.rssi).
      Stringer("Quality", device.QualityFromRSSI(probe.rssi)).
      Strs("Services", maps.Keys(probe.services))

    if probe.hasReading {
      event = event.Stringer("Reading", probe.reading)
    }

    event.Msg("Found probe")
  }
  discovery.mu.Unlock()

  for _, s := range discovery.suggestions() {
    fmt.Println(s)
  }
}

func runDiscovery(ctx context.Context, scanner collector.Scanner, discovery *probeDiscovery) error {
  err := scanner.ScanAll(ctx, discovery.onAdvertisement)

  if err != nil && !utils.IsContextError(err) {
    return err
  }

  return nil
}

