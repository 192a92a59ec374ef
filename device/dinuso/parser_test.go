package dinuso_test

import (
  "errors"
  "reflect"
  "testing"

  ble_mod "github.com/go-ble/ble"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/device/dinuso"
)

func TestAdvertisement_TemperatureOnly(t *testing.T) {
  payload := []byte{0x00, 0x00, 0x00, 0x00, 0x39, 0x05}

  advertisement := FakeAdvertisement{
    serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: payload}},
    rssi: -60,
    addr: ble_mod.NewAddr("aa:bb:cc:dd:ee:ff"),
  }

  dev := dinuso.Device{}
  got, err := dev.ParseAdvertisement(advertisement)

  if err != nil {
    t.Fatalf("ParseAdvertisement(%x) got error: %v", payload, err)
  }

  want := device.Reading{
    Temperature:        33.5,
    TemperatureRounded: 34,
    RawTemperature:     1337,
    RSSI:               -60,
    Addr:               "AA:BB:CC:DD:EE:FF",
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("ParseAdvertisement(%x): got %+#v, wanted %+#v", payload, got, want)
  }

  if got.Quality() != device.QualityGood {
    t.Fatalf("Quality(): got %v, wanted %v", got.Quality(), device.QualityGood)
  }
}

func TestAdvertisement_WithBattery(t *testing.T) {
  payload := []byte{
    0x01, 0x02, 0x03, 0x04, 0x29, 0x03,
    0x00, 0x00, 0x00, 0x00, 0x00, 0x40,
  }

  advertisement := FakeAdvertisement{
    serviceData: []ble_mod.ServiceData{{UUID: ble_mod.UUID16(0xae65), Data: payload}},
    rssi: -42,
  }

  dev := dinuso.Device{}
  got, err := dev.ParseAdvertisement(advertisement)

  if err != nil {
    t.Fatalf("ParseAdvertisement(%x) got error: %v", payload, err)
  }

  want := device.Reading{
    Temperature:        0.5,
    TemperatureRounded: 0,
    RawTemperature:     809,
    BatteryVoltage:     2.0,
    BatteryBars:        3,
    BatteryLevel:       100,
    RSSI:               -42,
    HasBatteryLevel:    true,
  }

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("ParseAdvertisement(%x): got %+#v, wanted %+#v", payload, got, want)
  }
}

func TestAdvertisement_BatteryBars(t *testing.T) {
  cases := []struct {
    battery byte
    bars device.BatteryBars
    level uint8
  }{
    {0xff, 3, 100},
    {64, 3, 100},
    {63, 2, 66},
    {55, 2, 66},
    {54, 1, 33},
    {48, 1, 33},
    {47, 0, 0},
    {0, 0, 0},
  }

  for _, c := range cases {
    payload := []byte{0, 0, 0, 0, 0x39, 0x03, 0, 0, 0, 0, 0, c.battery, 0xaa}

    dev := dinuso.Device{}
    got, err := dev.ParseAdvertisement(FakeAdvertisement{
      serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: payload}},
    })

    if err != nil {
      t.Fatalf("ParseAdvertisement(%x) got error: %v", payload, err)
    }

    if !got.HasBatteryLevel || got.BatteryBars != c.bars || got.BatteryLevel != c.level {
      t.Errorf("battery byte %d: got bars=%d level=%d (has=%v), wanted bars=%d level=%d",
        c.battery, got.BatteryBars, got.BatteryLevel, got.HasBatteryLevel, c.bars, c.level)
    }

    if got.TemperatureRounded != 2 {
      t.Errorf("battery byte %d: got rounded temperature %d, wanted 2", c.battery, got.TemperatureRounded)
    }
  }
}

func TestAdvertisement_NegativeTemperature(t *testing.T) {
  payload := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

  dev := dinuso.Device{}
  got, err := dev.ParseAdvertisement(FakeAdvertisement{
    serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: payload}},
  })

  if err != nil {
    t.Fatalf("ParseAdvertisement(%x) got error: %v", payload, err)
  }

  if got.Temperature != -50.0625 || got.TemperatureRounded != -50 {
    t.Fatalf("ParseAdvertisement(%x): got %v (%d), wanted -50.0625 (-50)",
      payload, got.Temperature, got.TemperatureRounded)
  }
}

func TestAdvertisement_ShortPayload(t *testing.T) {
  payload := []byte{0x00, 0x00, 0x00, 0x00, 0x39}

  dev := dinuso.Device{}
  _, err := dev.ParseAdvertisement(FakeAdvertisement{
    serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: payload}},
  })

  if !errors.Is(err, device.ErrInvalidData) {
    t.Fatalf("ParseAdvertisement(%x): got error %v, wanted %v", payload, err, device.ErrInvalidData)
  }
}

func TestAdvertisement_NoServiceData(t *testing.T) {
  cases := []FakeAdvertisement{
    {},
    {serviceData: []ble_mod.ServiceData{{UUID: ble_mod.UUID16(0x181a), Data: []byte{1, 2, 3, 4, 5, 6}}}},
    {serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: []byte{}}}},
  }

  for _, advertisement := range cases {
    dev := dinuso.Device{}
    _, err := dev.ParseAdvertisement(advertisement)

    if !errors.Is(err, device.ErrNoPayload) {
      t.Errorf("ParseAdvertisement(%+v): got error %v, wanted %v", advertisement, err, device.ErrNoPayload)
    }

    if dinuso.IsProbeAdvertisement(advertisement) {
      t.Errorf("IsProbeAdvertisement(%+v) = true, wanted false", advertisement)
    }
  }
}

func TestFactory(t *testing.T) {
  f := &dinuso.Factory{}

  dev, err := f.FromSpec(device.NewDeviceSpec("addr=aa-bb-cc-dd-ee-ff"))
  if err != nil {
    t.Fatalf("FromSpec got error: %v", err)
  }

  if dev.Name() != "dinuso-aabbccddeeff" {
    t.Errorf("Name(): got %q, wanted %q", dev.Name(), "dinuso-aabbccddeeff")
  }

  if dev.Addr().String() != "aa:bb:cc:dd:ee:ff" || device.MatchesAnyAddress(dev) {
    t.Errorf("got addr %v (any=%v), wanted aa:bb:cc:dd:ee:ff", dev.Addr(), device.MatchesAnyAddress(dev))
  }

  dev, err = f.FromSpec(device.NewDeviceSpec("name=brisket"))
  if err != nil {
    t.Fatalf("FromSpec got error: %v", err)
  }

  if dev.Name() != "brisket" || !device.MatchesAnyAddress(dev) {
    t.Errorf("got %v, wanted brisket matching any address", dev)
  }

  if _, err := f.FromSpec(device.NewDeviceSpec("addr=aa:bb:cc:dd:ee")); err == nil {
    t.Errorf("FromSpec with short address: expected error")
  }
}

type FakeAdvertisement struct {
  name string
  serviceData []ble_mod.ServiceData
  rssi int
  addr ble_mod.Addr
}

func (f FakeAdvertisement) LocalName() string {
  return f.name
}

func (f FakeAdvertisement) ManufacturerData() []byte {
  return nil
}

func (f FakeAdvertisement) ServiceData() []ble_mod.ServiceData {
  return f.serviceData
}

func (f FakeAdvertisement) Services() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) OverflowService() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) TxPowerLevel() int {
  return 0
}

func (f FakeAdvertisement) Connectable() bool {
  return false
}

func (f FakeAdvertisement) SolicitedService() []ble_mod.UUID {
  return nil
}

func (f FakeAdvertisement) RSSI() int {
  return f.rssi
}

func (f FakeAdvertisement) Addr() ble_mod.Addr {
  return f.addr
}
