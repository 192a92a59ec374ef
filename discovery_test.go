package main

import (
  "context"
  "errors"
  "fmt"
  "reflect"
  "testing"
  "time"

  ble_mod "github.com/go-ble/ble"
  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/device/dinuso"
)

type FakeAdvertisement struct {
  name string
  serviceData []ble_mod.ServiceData
  rssi int
  addr ble_mod.Addr
}

func (f FakeAdvertisement) LocalName() string                  { return f.name }
func (f FakeAdvertisement) ManufacturerData() []byte           { return nil }
func (f FakeAdvertisement) ServiceData() []ble_mod.ServiceData { return f.serviceData }
func (f FakeAdvertisement) Services() []ble_mod.UUID           { return nil }
func (f FakeAdvertisement) OverflowService() []ble_mod.UUID    { return nil }
func (f FakeAdvertisement) TxPowerLevel() int                  { return 0 }
func (f FakeAdvertisement) Connectable() bool                  { return false }
func (f FakeAdvertisement) SolicitedService() []ble_mod.UUID   { return nil }
func (f FakeAdvertisement) RSSI() int                          { return f.rssi }
func (f FakeAdvertisement) Addr() ble_mod.Addr                 { return f.addr }

type replayScanner struct {
  advertisements []ble.Advertisement
  err error
}

func (s replayScanner) ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error {
  for _, a := range s.advertisements {
    onAdvertisement(a)
  }

  if s.err != nil {
    return s.err
  }

  <-ctx.Done()
  return fmt.Errorf("failed to scan: %w", ctx.Err())
}

func probePayload() []ble_mod.ServiceData {
  return []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: []byte{0, 0, 0, 0, 0x39, 0x05}}}
}

func TestDiscovery(t *testing.T) {
  scanner := replayScanner{
    advertisements: []ble.Advertisement{
      FakeAdvertisement{serviceData: probePayload(), rssi: -48, addr: ble_mod.NewAddr("aa:bb:cc:dd:ee:02")},
      FakeAdvertisement{name: "DINUSO", rssi: -47, addr: ble_mod.NewAddr("aa:bb:cc:dd:ee:02")},
      FakeAdvertisement{name: "Some TV", rssi: -30, addr: ble_mod.NewAddr("11:22:33:44:55:66")},
      FakeAdvertisement{serviceData: probePayload(), rssi: -90, addr: ble_mod.NewAddr("aa:bb:cc:dd:ee:01")},
    },
  }

  discovery := newProbeDiscovery()

  ctx, cancel := context.WithTimeout(context.Background(), 10 * time.Millisecond)
  defer cancel()

  if err := runDiscovery(ctx, scanner, discovery); err != nil {
    t.Fatalf("runDiscovery got error: %v", err)
  }

  want := []string{
    "-dinuso addr=AA:BB:CC:DD:EE:01,name=dinuso-aabbccddee01",
    "-dinuso addr=AA:BB:CC:DD:EE:02,name=DINUSO",
  }

  if got := discovery.suggestions(); !reflect.DeepEqual(got, want) {
    t.Fatalf("suggestions(): got %v, wanted %v", got, want)
  }

  probe := discovery.probes["AA:BB:CC:DD:EE:02"]

  if !probe.hasReading || probe.reading.Temperature != 33.5 || probe.rssi != -47 {
    t.Fatalf("probe: got %+v", probe)
  }
}

func TestDiscovery_ScanError(t *testing.T) {
  scanner := replayScanner{err: errors.New("hci: device busy")}

  if err := runDiscovery(context.Background(), scanner, newProbeDiscovery()); err == nil {
    t.Fatalf("runDiscovery: expected error")
  }
}

func TestOneShot(t *testing.T) {
  seen := dinuso.NewDevice("seen", nil)

  cfg := config{
    Devices: []device.Device{seen},
    CollectionTimeout: time.Second,
  }

  scanner := replayScanner{
    advertisements: []ble.Advertisement{
      FakeAdvertisement{serviceData: probePayload(), rssi: -48, addr: ble_mod.NewAddr("aa:bb:cc:dd:ee:02")},
    },
  }

  if code := doOneShot(context.Background(), cfg, scanner); code != 0 {
    t.Fatalf("doOneShot: got exit code %d, wanted 0", code)
  }

  cfg.CollectionTimeout = 10 * time.Millisecond

  if code := doOneShot(context.Background(), cfg, replayScanner{}); code != 1 {
    t.Fatalf("doOneShot(silent device): got exit code %d, wanted 1", code)
  }
}

func TestFormatReading(t *testing.T) {
  dev := dinuso.NewDevice("brisket", nil)
  r := device.Reading{
    Temperature: 33.5,
    TemperatureRounded: 34,
    RawTemperature: 1337,
    BatteryBars: 3,
    BatteryLevel: 100,
    HasBatteryLevel: true,
    RSSI: -60,
    Addr: "AA:BB:CC:DD:EE:FF",
  }

  want := "brisket temperature=33.5000 temperature_int=34 raw=1337 rssi=-60 quality=Good " +
    "battery=100% battery_bars=3 addr=AA:BB:CC:DD:EE:FF"

  if got := formatReading(dev, r); got != want {
    t.Fatalf("formatReading:\n got %q\nwant %q", got, want)
  }

  results := map[device.Device]model.Result{dev: {Reading: r}}

  if got := logResults([]device.Device{dev}, results, nil); got[dev] != r {
    t.Fatalf("logResults: got %v", got)
  }
}
