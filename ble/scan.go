package ble

import (
  "context"
  "errors"
  "fmt"

  "github.com/go-ble/ble"
  "github.com/prometheus/client_golang/prometheus"
  "github.com/rs/zerolog/log"
)

var (
  scansCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "dinuso_exporter_ble_scans_total",
    Help: "Number of BLE scan sessions started.",
  })
  scanFailuresCounter = prometheus.NewCounter(prometheus.CounterOpts{
    Name: "dinuso_exporter_ble_scan_failures_total",
    Help: "Number of BLE scan sessions that ended with an error.",
  })
)

func WrapContextWithSigHandler(ctx context.Context, cancel func()) context.Context {
  return ble.WithSigHandler(ctx, cancel)
}

// Perform an active or passive scan, passing every advertisement received to onAdvertisement
// until the context is done. Duplicate advertisements are reported, as probes broadcast
// their readings continuously from the same address.
func (h *Handle) ScanAll(ctx context.Context, onAdvertisement func(Advertisement)) error {
  scansCounter.Inc()

  log.Trace().Msg("ble: starting scan")

  err := h.dev.Scan(ctx, true, onAdvertisement)

  if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
    scanFailuresCounter.Inc()
  }

  if err != nil {
    return fmt.Errorf("failed to scan: %w", err)
  }

  return nil
}
