package collector

import (
  "context"
  "sync"
  "time"

  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/collector/model"
  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/robertof/go-dinuso-exporter/utils"
  "github.com/rs/zerolog/log"
  "golang.org/x/sync/errgroup"
)

const (
  DefaultMaxRetries = 2
  DefaultTimeoutPerAttempt = 15 * time.Second
  DefaultBackoffFactor = 500 * time.Millisecond
)

// Scanner is implemented by *ble.Handle.
type Scanner interface {
  ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error
}

type CollectionOptions struct {
  MaxRetries int
  TimeoutPerAttempt time.Duration
  BackoffFactor time.Duration

  attempt int
}

func backoffFor(factor time.Duration, attempt int, max time.Duration) time.Duration {
  backoff := factor << int64(attempt)

  // overflow
  if backoff < factor {
    if max > 0 {
      return max
    }

    return factor
  }

  if max > 0 && backoff > max {
    backoff = max
  }

  return backoff
}

func collectViaScan(
  ctx context.Context,
  scanner Scanner,
  devices []device.Device,
  ch chan model.DeviceResult,
) error {
  ctx, cancel := context.WithCancel(ctx)
  defer cancel()

  d := newDispatcher(devices)

  var mu sync.Mutex
  done := make(map[device.Device]bool, len(devices))
  // the BLE lib could send an advertisement even after `Scan()` returns, when ch may be
  // closed already.
  finished := false

  err := scanner.ScanAll(ctx, func(a ble.Advertisement) {
    dev, reading, err := d.handle(a)

    if dev == nil {
      return
    }

    mu.Lock()
    defer mu.Unlock()

    if finished || done[dev] {
      return
    }

    result := model.DeviceResult{
      Device: dev,
      Result: model.Result{
        Reading: reading,
        Error: err,
      },
    }

    select {
    case <-ctx.Done():
      return // context is canceled, let's get out of the way
    case ch <- result:
    }

    // consider ourselves happy when there is no error parsing the advertisement
    if err == nil {
      done[dev] = true

      if len(done) == len(devices) {
        cancel()
      }
    }
  })

  mu.Lock()
  defer mu.Unlock()

  finished = true

  // swallow context errors if we got results for all devices
  if utils.IsContextError(err) && len(done) == len(devices) {
    err = nil
  }

  return err
}

func CollectReadings(
  ctx context.Context,
  scanner Scanner,
  devices []device.Device,
) (out map[device.Device]model.Result, err error) {
  return CollectReadingsWithOptions(
    ctx,
    scanner,
    devices,
    CollectionOptions{
      MaxRetries: DefaultMaxRetries,
      TimeoutPerAttempt: DefaultTimeoutPerAttempt,
      BackoffFactor: DefaultBackoffFactor,
    },
  )
}

// Collect readings from the specified devices and don't stop until either a valid
// advertisement has been parsed for all of them or the attempts are exhausted. Devices which
// never advertised are missing from the output.
func CollectReadingsWithOptions(
  parentCtx context.Context,
  scanner Scanner,
  devices []device.Device,
  options CollectionOptions,
) (out map[device.Device]model.Result, err error) {
  out = make(map[device.Device]model.Result, len(devices))

  log.Debug().
    Array("Devices", utils.ToZeroLogArray(devices)).
    Int("Attempt", options.attempt).
    Msg("Collecting readings from devices")

  // make sure we enforce the passed timeout.
  var ctx context.Context
  var cancel func()

  if options.TimeoutPerAttempt > 0 {
    ctx, cancel = context.WithTimeout(parentCtx, options.TimeoutPerAttempt)
  } else {
    ctx, cancel = context.WithCancel(parentCtx)
  }

  defer cancel()

  var eg errgroup.Group
  resultCh := make(chan model.DeviceResult)

  eg.Go(func() error {
    return collectViaScan(ctx, scanner, devices, resultCh)
  })

  go func() {
    err = eg.Wait()
    close(resultCh)
  }()

  for v := range resultCh {
    log.Trace().
      Stringer("Device", v.Device).
      Stringer("Result", v.Result).
      Msg("Received result for device")

    out[v.Device] = v.Result
  }

  // analyze results, and retry if needed
  if options.MaxRetries > 0 {
    var failedDevices []device.Device

    for _, device := range devices {
      if result, ok := out[device]; ok && result.Error != nil {
        failedDevices = append(failedDevices, device)

        log.Debug().
          Stringer("Device", device).
          Int("RetriesLeft", options.MaxRetries).
          Err(result.Error).
          Msg("Collection failed for device - will retry")
      } else if !ok {
        failedDevices = append(failedDevices, device)

        log.Debug().
          Stringer("Device", device).
          Int("RetriesLeft", options.MaxRetries).
          Err(err).
          Msg("No data received for device (wrong MAC? probe asleep?) - will retry")
      }
    }

    if len(failedDevices) > 0 {
      if options.BackoffFactor > 0 {
        backoff := backoffFor(options.BackoffFactor, options.attempt, 0)

        log.Trace().
          Dur("Backoff", backoff).
          Msg("Backing off before attempting retry")

        select {
        case <-parentCtx.Done():
          log.Trace().Err(parentCtx.Err()).Msg("Retry aborted by context cancel")
          return out, parentCtx.Err()
        case <-time.After(backoff):
        }
      }

      options.MaxRetries -= 1
      options.attempt += 1

      retryOutput, err := CollectReadingsWithOptions(parentCtx, scanner, failedDevices, options)

      // merge old and new outputs
      for failedDevice, result := range retryOutput {
        out[failedDevice] = result
      }

      return out, err
    }
  }

  if len(out) == len(devices) && utils.IsContextError(err) && parentCtx.Err() == nil {
    // the attempt timed out but every device answered, with errors.
    err = nil
  }

  return out, err
}
