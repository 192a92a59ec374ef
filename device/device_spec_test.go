package device_test

import (
  "reflect"
  "testing"

  "github.com/robertof/go-dinuso-exporter/device"
)

func TestNewDeviceSpec(t *testing.T) {
  got := device.NewDeviceSpec(" addr = AA:BB:CC:DD:EE:FF ,name=grill,garbage")
  want := device.DeviceSpec{"addr": "AA:BB:CC:DD:EE:FF", "name": "grill"}

  if !reflect.DeepEqual(got, want) {
    t.Fatalf("NewDeviceSpec: got %v, wanted %v", got, want)
  }

  if empty := device.NewDeviceSpec(""); len(empty) != 0 {
    t.Fatalf("NewDeviceSpec(\"\"): got %v, wanted empty spec", empty)
  }
}

func TestParseMAC(t *testing.T) {
  valid := map[string]string{
    "AA:BB:CC:DD:EE:FF":   "aa:bb:cc:dd:ee:ff",
    "aa-bb-cc-dd-ee-01":   "aa:bb:cc:dd:ee:01",
    " 00:11:22:33:44:55 ": "00:11:22:33:44:55",
  }

  for in, want := range valid {
    got, err := device.ParseMAC(in)

    if err != nil {
      t.Errorf("ParseMAC(%q) got error: %v", in, err)
      continue
    }

    if got.String() != want {
      t.Errorf("ParseMAC(%q): got %v, wanted %v", in, got, want)
    }
  }

  for _, in := range []string{"", "AA:BB:CC:DD:EE", "AABBCCDDEEFF", "0000.0000.0000", "GG:BB:CC:DD:EE:FF",
      "00:00:5e:00:53:01:02:03"} {
    if _, err := device.ParseMAC(in); err == nil {
      t.Errorf("ParseMAC(%q): expected error", in)
    }
  }
}
