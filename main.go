package main

import (
  "context"
  "errors"
  "fmt"
  "net"
  "net/http"
  "os"
  "time"

  "github.com/prometheus/client_golang/prometheus"
  "github.com/prometheus/client_golang/prometheus/collectors"
  "github.com/prometheus/client_golang/prometheus/promhttp"
  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/collector"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/hass"
  "github.com/robertof/go-dinuso-exporter/metrics"
  "github.com/robertof/go-dinuso-exporter/utils"
  "github.com/rs/zerolog"
  "github.com/rs/zerolog/log"
  "golang.org/x/sync/errgroup"
)

func main() {
  zerolog.DurationFieldUnit = time.Second
  zerolog.TimeFieldFormat = time.RFC3339Nano

  log.Logger = log.Output(zerolog.ConsoleWriter{
    Out: os.Stderr,
    TimeFormat: "15:04:05.000",
  })

  cfg := ParseArgs()

  zerolog.SetGlobalLevel(utils.LevelFromFlags(
    cfg.Trace || os.Getenv("TRACE") != "",
    cfg.Debug || os.Getenv("DEBUG") != "",
  ))

  if cfg.DiscoverDevices {
    doDeviceDiscovery(cfg)
    return
  }

  log.Info().
    Str("BindAddr", cfg.BindAddress).
    Array("Devices", utils.ToZeroLogArray(cfg.Devices)).
    Int("BluetoothDeviceID", cfg.BluetoothDeviceId).
    Bool("MQTT", cfg.MQTT.Enabled()).
    Msg("Starting with the specified configuration")

  bleHandle := initBle(cfg)
  defer bleHandle.Stop()

  ctx := ble.WrapContextWithSigHandler(context.WithCancel(context.Background()))

  if cfg.Once {
    code := doOneShot(ctx, cfg, bleHandle)
    bleHandle.Stop()
    os.Exit(code)
  }

  tracker := collector.NewTracker(cfg.Devices, cfg.DeviceTimeout)

  if cfg.InitialCollectionTimeout > 0 {
    tracker.Seed(collectInitialReadings(ctx, cfg, bleHandle))
  }

  registry := prometheus.NewRegistry()

  metrics.RegisterCollector(tracker.Snapshot, registry)

  if cfg.EnableMetamonitoring {
    ble.RegisterMetrics(registry)
    collector.RegisterMetrics(registry)
    registry.MustRegister(
      collectors.NewGoCollector(),
      collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )
  }

  listener := collector.NewListener(bleHandle, tracker)
  listener.BackoffFactor = cfg.Backoff

  eg, ctx := errgroup.WithContext(ctx)

  eg.Go(func() error {
    return listener.Start(ctx)
  })

  if cfg.MQTT.Enabled() {
    publisher, err := hass.Dial(cfg.MQTT, tracker)

    if err != nil {
      log.Fatal().Err(err).Msg("Failed to set up the Home Assistant publisher")
    }

    defer publisher.Close()

    eg.Go(func() error {
      return publisher.Run(ctx)
    })
  }

  mux := http.NewServeMux()
  mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

  server := &http.Server{
    Addr: cfg.BindAddress,
    Handler: mux,
    ReadHeaderTimeout: 10 * time.Second,
  }

  log.Info().
    Str("ListenAddress", cfg.BindAddress).
    Msg("Starting Prometheus server")

  eg.Go(func() error {
    if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      return fmt.Errorf("unable to bind on requested address: %w", err)
    }

    return nil
  })

  eg.Go(func() error {
    <-ctx.Done()

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5 * time.Second)
    defer cancel()

    return server.Shutdown(shutdownCtx)
  })

  if err := eg.Wait(); err != nil {
    log.Error().Err(err).Msg("Exporter stopped with an error")
    return
  }

  log.Info().Msg("Exporter stopped")
}

func initBle(cfg config) *ble.Handle {
  var bleFlags ble.Flags

  if cfg.ActiveScan {
    bleFlags |= ble.FlagScanTypeActive
  }

  useAllowList := true
  deviceAddresses := make([]net.HardwareAddr, 0, len(cfg.Devices))

  for _, dev := range cfg.Devices {
    if device.MatchesAnyAddress(dev) {
      // the probe address is unknown, so the controller can't filter for us.
      useAllowList = false
      continue
    }

    deviceAddresses = append(deviceAddresses, dev.Addr())

    if dev.Flags() & device.FlagRequiresBleActiveScan == device.FlagRequiresBleActiveScan {
      bleFlags |= ble.FlagScanTypeActive
    }
  }

  if useAllowList {
    bleFlags |= ble.FlagEnableDeviceAllowList
  }

  bleHandle, err := ble.Init(cfg.BluetoothDeviceId, bleFlags)

  if err != nil {
    log.Fatal().Err(err).Msg("Failed to initialize Bluetooth device")
  }

  if useAllowList {
    if err := bleHandle.SetAllowListedAddresses(deviceAddresses); err != nil {
      log.Error().Err(err).Msg("Failed to set device allow list")
    }
  }

  return bleHandle
}
