package main

import (
  "context"
  "fmt"

  "github.com/robertof/go-dinuso-exporter/collector"
  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/rs/zerolog/log"
)

func collectionOptions(cfg config) collector.CollectionOptions {
  return collector.CollectionOptions{
    TimeoutPerAttempt: cfg.CollectionTimeout,
    MaxRetries: cfg.MaxRetries,
    BackoffFactor: cfg.Backoff,
  }
}

// collectInitialReadings waits for a first reading of every device. Devices that stay silent
// are simply reported as disconnected until they show up.
func collectInitialReadings(
  ctx context.Context,
  cfg config,
  scanner collector.Scanner,
) map[device.Device]device.Reading {
  log.Info().
    Dur("TimeoutSec", cfg.InitialCollectionTimeout).
    Msg("Running initial collection for the provided devices")

  opts := collectionOptions(cfg)
  opts.TimeoutPerAttempt = cfg.InitialCollectionTimeout

  readings, err := collector.CollectReadingsWithOptions(ctx, scanner, cfg.Devices, opts)

  return logResults(cfg.Devices, readings, err)
}

func logResults(
  devices []device.Device,
  results map[device.Device]model.Result,
  err error,
) map[device.Device]device.Reading {
  res := make(map[device.Device]device.Reading)

  for _, dev := range devices {
    result, ok := results[dev]

    switch {
    case !ok:
      log.Warn().
        Stringer("Device", dev).
        Err(err).
        Msg("No reading received for device")
    case result.Error != nil:
      log.Warn().
        Stringer("Device", dev).
        Err(result.Error).
        Msg("Failed to collect reading for device")
    default:
      log.Info().
        Stringer("Device", dev).
        Stringer("Reading", result.Reading).
        Msg("Successfully collected reading for device")

      res[dev] = result.Reading
    }
  }

  return res
}

func formatReading(dev device.Device, r device.Reading) string {
  s := fmt.Sprintf("%s temperature=%.4f temperature_int=%d raw=%d rssi=%d quality=%v",
    dev.Name(), r.Temperature, r.TemperatureRounded, r.RawTemperature, r.RSSI, r.Quality())

  if r.HasBatteryLevel {
    s += fmt.Sprintf(" battery=%d%% battery_bars=%d", r.BatteryLevel, r.BatteryBars)
  }

  if r.Addr != "" {
    s += " addr=" + r.Addr
  }

  return s
}

// doOneShot prints one reading per device and returns the process exit code.
func doOneShot(ctx context.Context, cfg config, scanner collector.Scanner) int {
  results, err := collector.CollectReadingsWithOptions(ctx, scanner, cfg.Devices, collectionOptions(cfg))
  readings := logResults(cfg.Devices, results, err)

  for _, dev := range cfg.Devices {
    if r, ok := readings[dev]; ok {
      fmt.Println(formatReading(dev, r))
    }
  }

  if len(readings) < len(cfg.Devices) {
    log.Error().Msg("Reading for at least one device failed")
    return 1
  }

  return 0
}
