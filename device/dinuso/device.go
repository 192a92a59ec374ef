package dinuso

import (
  "fmt"
  "net"

  "github.com/go-ble/ble"
  "github.com/robertof/go-dinuso-exporter/device"
)

type Device struct {
  name string
  addr net.HardwareAddr
}

func NewDevice(name string, addr net.HardwareAddr) *Device {
  if name == "" {
    var addrStr string

    if addr != nil {
      addrStr = addr.String()
    }

    name = DefaultName(addrStr)
  }

  return &Device{name: name, addr: addr}
}

func (d *Device) Name() string {
  return d.name
}

func (d *Device) Addr() net.HardwareAddr {
  return d.addr
}

func (d *Device) Flags() device.Flags {
  if d.addr == nil {
    return device.FlagMatchesAnyAddress
  }

  return 0
}

func (d *Device) ParseAdvertisement(a ble.Advertisement) (device.Reading, error) {
  return parseAdvertisement(a)
}

func (d *Device) String() string {
  if d.addr == nil {
    return fmt.Sprintf("dinuso[name=%q, addr=any]", d.name)
  }

  return fmt.Sprintf("dinuso[name=%q, addr=%v]", d.name, d.addr.String())
}
