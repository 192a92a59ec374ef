package collector

import (
  "context"
  "fmt"
  "net"
  "sync"

  ble_mod "github.com/go-ble/ble"
  "github.com/robertof/go-dinuso-exporter/ble"
  "github.com/robertof/go-dinuso-exporter/device/dinuso"
)

type FakeAdvertisement struct {
  serviceData []ble_mod.ServiceData
  rssi int
  addr ble_mod.Addr
}

func probeAdvertisement(addr string, rssi int, payload ...byte) FakeAdvertisement {
  return FakeAdvertisement{
    serviceData: []ble_mod.ServiceData{{UUID: dinuso.ServiceUUID, Data: payload}},
    rssi: rssi,
    addr: ble_mod.NewAddr(addr),
  }
}

func (f FakeAdvertisement) LocalName() string                   { return "" }
func (f FakeAdvertisement) ManufacturerData() []byte            { return nil }
func (f FakeAdvertisement) ServiceData() []ble_mod.ServiceData  { return f.serviceData }
func (f FakeAdvertisement) Services() []ble_mod.UUID            { return nil }
func (f FakeAdvertisement) OverflowService() []ble_mod.UUID     { return nil }
func (f FakeAdvertisement) TxPowerLevel() int                   { return 0 }
func (f FakeAdvertisement) Connectable() bool                   { return false }
func (f FakeAdvertisement) SolicitedService() []ble_mod.UUID    { return nil }
func (f FakeAdvertisement) RSSI() int                           { return f.rssi }
func (f FakeAdvertisement) Addr() ble_mod.Addr                  { return f.addr }

// fakeScanner replays one batch of advertisements per ScanAll call. When failFast is set the
// scan returns an error right after the batch instead of waiting for the context.
type fakeScanner struct {
  mu sync.Mutex
  batches [][]ble.Advertisement
  failFast []bool
  calls int
}

func (f *fakeScanner) ScanAll(ctx context.Context, onAdvertisement func(ble.Advertisement)) error {
  f.mu.Lock()
  call := f.calls
  f.calls += 1
  f.mu.Unlock()

  if call < len(f.batches) {
    for _, a := range f.batches[call] {
      if ctx.Err() != nil {
        break
      }

      onAdvertisement(a)
    }
  }

  if call < len(f.failFast) && f.failFast[call] {
    return fmt.Errorf("failed to scan: %w", net.ErrClosed)
  }

  <-ctx.Done()

  return fmt.Errorf("failed to scan: %w", ctx.Err())
}

func (f *fakeScanner) Calls() int {
  f.mu.Lock()
  defer f.mu.Unlock()

  return f.calls
}

func mustDevice(name, addr string) *dinuso.Device {
  if addr == "" {
    return dinuso.NewDevice(name, nil)
  }

  hwAddr, err := net.ParseMAC(addr)
  if err != nil {
    panic(err)
  }

  return dinuso.NewDevice(name, hwAddr)
}
