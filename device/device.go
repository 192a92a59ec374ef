package device

import (
  "errors"
  "net"

  "github.com/go-ble/ble"
)

var (
  ErrInvalidData = errors.New("invalid data")
  // The advertisement does not carry the payload of the device at all (e.g. it's a scan
  // response or another peripheral on the same address).
  ErrNoPayload = errors.New("no payload")
)

type Flags uint8

const (
  FlagRequiresBleActiveScan Flags = 1 << iota
  // The device has no configured address and accepts the first advertiser whose payload
  // it can decode.
  FlagMatchesAnyAddress
)

type Device interface {
  Name() string
  // Addr is nil when FlagMatchesAnyAddress is set.
  Addr() net.HardwareAddr
  Flags() Flags
  ParseAdvertisement(a ble.Advertisement) (Reading, error)
  String() string
}

func MatchesAnyAddress(d Device) bool {
  return d.Flags() & FlagMatchesAnyAddress == FlagMatchesAnyAddress
}
