package dinuso

import (
  "encoding/binary"
  "math"
  "strings"

  "github.com/go-ble/ble"
  "github.com/pkg/errors"
  "github.com/robertof/go-dinuso-exporter/device"
)

const (
  serviceUUIDString = "0000ae65-0000-1000-8000-00805f9b34fb"

  minPayloadLength = 6
  batteryOffset = 11

  temperatureStep = 0.0625
  temperatureOffset = 50.0625
  batteryVoltageStep = 0.03125
)

var (
  ServiceUUID = ble.MustParse(serviceUUIDString)
  // some adapters report the short form of the service data UUID.
  serviceUUID16 = ble.UUID16(0xae65)
)

// battery voltage thresholds, highest first.
var batteryBarThresholds = []struct {
  minVoltage float64
  bars device.BatteryBars
}{
  {2.0, 3},
  {1.7, 2},
  {1.5, 1},
}

func isServiceUUID(u ble.UUID) bool {
  return u.Equal(ServiceUUID) || u.Equal(serviceUUID16)
}

func servicePayload(a ble.Advertisement) []byte {
  for _, sd := range a.ServiceData() {
    if isServiceUUID(sd.UUID) && len(sd.Data) > 0 {
      return sd.Data
    }
  }

  return nil
}

// IsProbeAdvertisement reports whether the advertisement carries DINUSO service data.
func IsProbeAdvertisement(a ble.Advertisement) bool {
  return servicePayload(a) != nil
}

// DefaultName returns the name used for a probe when none is configured.
func DefaultName(addr string) string {
  if addr == "" {
    return "dinuso"
  }

  return "dinuso-" + strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(addr))
}

func batteryBarsFromVoltage(v float64) device.BatteryBars {
  for _, t := range batteryBarThresholds {
    if v >= t.minVoltage {
      return t.bars
    }
  }

  return 0
}

func parsePayload(data []byte) (reading device.Reading, err error) {
  if len(data) < minPayloadLength {
    return reading, errors.Wrapf(device.ErrInvalidData,
      "unexpected payload length (%d), want >= %d", len(data), minPayloadLength)
  }

  raw := binary.LittleEndian.Uint16(data[4:])

  reading.RawTemperature = raw
  reading.Temperature = float64(raw) * temperatureStep - temperatureOffset
  // ties happen every 16 steps (x.5 degrees), round them to even.
  reading.TemperatureRounded = int(math.RoundToEven(reading.Temperature))

  if len(data) > batteryOffset {
    reading.HasBatteryLevel = true
    reading.BatteryVoltage = float64(data[batteryOffset]) * batteryVoltageStep
    reading.BatteryBars = batteryBarsFromVoltage(reading.BatteryVoltage)
    reading.BatteryLevel = reading.BatteryBars.Percent()
  }

  return reading, nil
}

func parseAdvertisement(a ble.Advertisement) (reading device.Reading, err error) {
  payload := servicePayload(a)

  if payload == nil {
    return reading, device.ErrNoPayload
  }

  reading, err = parsePayload(payload)

  if err != nil {
    return reading, err
  }

  reading.RSSI = a.RSSI()

  if addr := a.Addr(); addr != nil {
    reading.Addr = strings.ToUpper(addr.String())
  }

  return reading, nil
}
