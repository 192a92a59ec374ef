package device

import (
  "fmt"
  "strings"
)

type Reading struct {
  Temperature float64
  TemperatureRounded int
  RawTemperature uint16

  BatteryVoltage float64
  BatteryBars BatteryBars
  BatteryLevel uint8

  RSSI int
  // Address of the sender. Mostly useful for devices matching any address.
  Addr string

  HasBatteryLevel bool
}

func (r Reading) Quality() ConnectionQuality {
  return QualityFromRSSI(r.RSSI)
}

func (r Reading) String() string {
  fields := []string{
    fmt.Sprintf("Temperature=%.4f", r.Temperature),
    fmt.Sprintf("Raw=%d", r.RawTemperature),
    fmt.Sprintf("RSSI=%d", r.RSSI),
  }

  if r.HasBatteryLevel {
    fields = append(fields,
      fmt.Sprintf("Battery=%d%%", r.BatteryLevel),
      fmt.Sprintf("BatteryBars=%d", r.BatteryBars))
  }

  if r.Addr != "" {
    fields = append(fields, "Addr=" + r.Addr)
  }

  return fmt.Sprintf("Reading[%v]", strings.Join(fields, ","))
}
