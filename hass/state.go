package hass

import (
  "time"

  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
)

// StatePayload is published on the state topic of a probe. Reading fields are null until the
// probe has been heard from once; afterwards the last reading is kept while disconnected.
type StatePayload struct {
  Connected bool `json:"connected"`
  Temperature *float64 `json:"temperature"`
  TemperatureInt *int `json:"temperature_int"`
  RawValue *uint16 `json:"raw_value"`
  BatteryLevel *uint8 `json:"battery_level"`
  BatteryBars *uint8 `json:"battery_bars"`
  RSSI *int `json:"rssi"`
  ConnectionQuality string `json:"connection_quality"`
  LastSeen *string `json:"last_seen"`
  MACAddress string `json:"mac_address,omitempty"`

  BatteryIcon string `json:"battery_icon"`
  QualityIcon string `json:"quality_icon"`
}

func BatteryIcon(s model.State) string {
  if !s.HasReading {
    return "mdi:battery-unknown"
  }

  switch s.Reading.BatteryBars {
  case 0:
    return "mdi:battery-outline"
  case 1:
    return "mdi:battery-30"
  case 2:
    return "mdi:battery-60"
  case 3:
    return "mdi:battery"
  default:
    return "mdi:battery-unknown"
  }
}

func QualityIcon(q device.ConnectionQuality) string {
  switch q {
  case device.QualityExcellent:
    return "mdi:signal-cellular-3"
  case device.QualityGood:
    return "mdi:signal-cellular-2"
  case device.QualityFair:
    return "mdi:signal-cellular-1"
  case device.QualityPoor:
    return "mdi:signal-cellular-outline"
  case device.QualityDisconnected:
    return "mdi:signal-off"
  default:
    return "mdi:signal"
  }
}

func NewStatePayload(s model.State) StatePayload {
  p := StatePayload{
    Connected: s.Connected,
    ConnectionQuality: s.Quality.String(),
    BatteryIcon: BatteryIcon(s),
    QualityIcon: QualityIcon(s.Quality),
  }

  if !s.HasReading {
    return p
  }

  r := s.Reading
  bars := uint8(r.BatteryBars)
  lastSeen := s.LastSeen.UTC().Format(time.RFC3339Nano)

  p.Temperature = &r.Temperature
  p.TemperatureInt = &r.TemperatureRounded
  p.RawValue = &r.RawTemperature
  p.BatteryLevel = &r.BatteryLevel
  p.BatteryBars = &bars
  p.RSSI = &r.RSSI
  p.LastSeen = &lastSeen
  p.MACAddress = r.Addr

  return p
}
