package dinuso

import (
  "fmt"
  "net"

  "github.com/robertof/go-dinuso-exporter/device"
  "github.com/rs/zerolog/log"
)

type Factory struct{}

func (f *Factory) FromSpec(spec device.DeviceSpec) (device.Device, error) {
  var hwAddr net.HardwareAddr

  if addr := spec.Addr(); addr != "" {
    var err error

    hwAddr, err = device.ParseMAC(addr)
    if err != nil {
      return nil, fmt.Errorf("invalid addr: %w", err)
    }
  }

  d := NewDevice(spec.Name(), hwAddr)

  if hwAddr == nil {
    log.Debug().Stringer("Device", d).Msg("dinuso: no addr given, accepting any probe")
  }

  return d, nil
}

func (f *Factory) Help() string {
  return `Supported parameters:
addr (string): MAC address of this DINUSO probe. When omitted, every probe heard is accepted
name (string): Name of this DINUSO probe. Defaults to dinuso-<addr>`
}
