package device

import (
  "fmt"
  "net"
  "regexp"
  "strings"

  "github.com/rs/zerolog/log"
)

type DeviceSpec map[string]string

const (
  DeviceSpecFieldName = "name"
  DeviceSpecFieldAddress = "addr"
)

var macAddressRegexp = regexp.MustCompile(`^([0-9A-F]{2}[:-]){5}[0-9A-F]{2}$`)

func NewDeviceSpec(s string) DeviceSpec {
  spec := DeviceSpec{}

  if strings.TrimSpace(s) == "" {
    return spec
  }

  entries := strings.Split(s, ",")

  for _, entry := range entries {
    parts := strings.SplitN(entry, "=", 2)

    if len(parts) != 2 {
      log.Warn().Str("Entry", entry).Msg("Skipping invalid device spec entry")
      continue
    }

    spec[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
  }

  return spec
}

func (ds DeviceSpec) Name() string {
  return ds[DeviceSpecFieldName]
}

func (ds DeviceSpec) Addr() string {
  return ds[DeviceSpecFieldAddress]
}

// ParseMAC accepts exactly six hex octets separated by ':' or '-', in any case.
func ParseMAC(s string) (net.HardwareAddr, error) {
  normalized := strings.ToUpper(strings.TrimSpace(s))

  if !macAddressRegexp.MatchString(normalized) {
    return nil, fmt.Errorf("%q is not a valid MAC address (want XX:XX:XX:XX:XX:XX)", s)
  }

  return net.ParseMAC(strings.ReplaceAll(normalized, "-", ":"))
}
