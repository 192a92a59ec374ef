package collector

import (
  "context"
  "time"

  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/utils"
  "github.com/rs/zerolog/log"
)

const DefaultMaxBackoff = time.Minute

// Listener continuously scans for advertisements and feeds decoded readings to a Tracker.
// Scans that fail are restarted with exponential backoff.
type Listener struct {
  BackoffFactor time.Duration
  MaxBackoff time.Duration

  scanner Scanner
  tracker *Tracker
  dispatcher *dispatcher

  started bool
}

func NewListener(scanner Scanner, tracker *Tracker) *Listener {
  return &Listener{
    BackoffFactor: DefaultBackoffFactor,
    MaxBackoff: DefaultMaxBackoff,
    scanner: scanner,
    tracker: tracker,
    dispatcher: newDispatcher(tracker.Devices()),
  }
}

func (l *Listener) onAdvertisement(a ble.Advertisement) {
  dev, reading, err := l.dispatcher.handle(a)

  if dev == nil {
    return
  }

  if err != nil {
    log.Debug().
      Stringer("Device", dev).
      Err(err).
      Msg("Failed to decode advertisement")

    return
  }

  l.tracker.Observe(dev, reading)
}

// Start blocks until ctx is done.
func (l *Listener) Start(ctx context.Context) error {
  if l.started {
    panic("attempted to call collector.Listener.Start() twice")
  }

  l.started = true

  log.Info().
    Array("Devices", utils.ToZeroLogArray(l.tracker.Devices())).
    Dur("DeviceTimeoutSec", l.tracker.DeviceTimeout).
    Msg("Starting advertisement listener")

  attempt := 0

  for {
    scanStart := time.Now()
    err := l.scanner.ScanAll(ctx, l.onAdvertisement)

    if ctx.Err() != nil {
      log.Info().Msg("Advertisement listener is shutting down")
      return nil
    }

    // a scan which ran for a while is not part of a failure streak.
    if time.Since(scanStart) > l.MaxBackoff {
      attempt = 0
    }

    backoff := backoffFor(l.BackoffFactor, attempt, l.MaxBackoff)
    attempt += 1

    if err != nil && !utils.IsContextError(err) {
      log.Error().
        Err(err).
        Dur("BackoffSec", backoff).
        Int("Attempt", attempt).
        Msg("Scan failed, restarting after backoff")
    } else {
      log.Warn().
        Dur("BackoffSec", backoff).
        Msg("Scan stopped unexpectedly, restarting after backoff")
    }

    select {
    case <-ctx.Done():
      log.Info().Msg("Advertisement listener is shutting down")
      return nil
    case <-time.After(backoff):
    }
  }
}
