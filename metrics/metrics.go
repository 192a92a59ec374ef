package metrics

import (
  "github.com/prometheus/client_golang/prometheus"
  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
)

var (
  descTemperature = prometheus.NewDesc(
    "sensor_temperature_celsius",
    "Temperature reported by the probe in Celsius.",
    []string{"name"},
    nil,
  )

  descTemperatureRounded = prometheus.NewDesc(
    "sensor_temperature_rounded_celsius",
    "Temperature reported by the probe, rounded to the nearest degree.",
    []string{"name"},
    nil,
  )

  descBattery = prometheus.NewDesc(
    "sensor_battery_ratio",
    "Battery level reported by the probe.",
    []string{"name"},
    nil,
  )

  descBatteryBars = prometheus.NewDesc(
    "sensor_battery_bars",
    "Battery bars (0-3) reported by the probe.",
    []string{"name"},
    nil,
  )

  descRSSI = prometheus.NewDesc(
    "sensor_rssi_dbm",
    "Signal strength of the last advertisement received from the probe.",
    []string{"name"},
    nil,
  )

  descConnected = prometheus.NewDesc(
    "sensor_connected",
    "Whether the probe has been heard from recently.",
    []string{"name"},
    nil,
  )

  descQuality = prometheus.NewDesc(
    "sensor_connection_quality_info",
    "Connection quality of the probe, derived from its signal strength.",
    []string{"name", "quality"},
    nil,
  )

  descLastSeen = prometheus.NewDesc(
    "sensor_last_seen_timestamp_seconds",
    "Time the last valid advertisement was received from the probe.",
    []string{"name"},
    nil,
  )
)

type CollectFunc func() map[device.Device]model.State

type collector struct {
  CollectFunc
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
  prometheus.DescribeByCollect(c, ch)
}

func boolToFloat(b bool) float64 {
  if b {
    return 1
  }

  return 0
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
  out := c.CollectFunc()

  for device, state := range out {
    name := device.Name()

    ch <- prometheus.MustNewConstMetric(
      descConnected,
      prometheus.GaugeValue,
      boolToFloat(state.Connected),
      name,
    )

    ch <- prometheus.MustNewConstMetric(
      descQuality,
      prometheus.GaugeValue,
      1,
      name,
      state.Quality.String(),
    )

    if !state.HasReading {
      continue
    }

    ts := state.LastSeen
    reading := state.Reading

    ch <- prometheus.MustNewConstMetric(
      descLastSeen,
      prometheus.GaugeValue,
      float64(ts.UnixNano()) / 1e9,
      name,
    )

    // samples carry the time the probe sent them, so Prometheus does not report stale
    // readings as new.
    timestamped := []prometheus.Metric{
      prometheus.MustNewConstMetric(descTemperature, prometheus.GaugeValue, reading.Temperature, name),
      prometheus.MustNewConstMetric(
        descTemperatureRounded, prometheus.GaugeValue, float64(reading.TemperatureRounded), name),
      prometheus.MustNewConstMetric(descRSSI, prometheus.GaugeValue, float64(reading.RSSI), name),
    }

    if reading.HasBatteryLevel {
      timestamped = append(timestamped,
        prometheus.MustNewConstMetric(
          descBattery, prometheus.GaugeValue, float64(reading.BatteryLevel) / 100, name),
        prometheus.MustNewConstMetric(
          descBatteryBars, prometheus.GaugeValue, float64(reading.BatteryBars), name),
      )
    }

    for _, m := range timestamped {
      ch <- prometheus.NewMetricWithTimestamp(ts, m)
    }
  }
}

func RegisterCollector(f CollectFunc, reg prometheus.Registerer) {
  c := &collector{f}

  reg.MustRegister(c)
}
