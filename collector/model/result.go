package model

import (
  "fmt"
  "time"

  "github.com/robertof/go-dinuso-exporter/device"
)

type Result struct {
  Reading device.Reading
  Error error
}

func (c Result) String() string {
  if c.Error != nil {
    return fmt.Sprintf("result:error(%v)", c.Error)
  } else {
    return fmt.Sprintf("result:success(%v)", c.Reading)
  }
}

type DeviceResult struct {
  device.Device
  Result
}

// State is what is known about a probe at a given instant. The last valid reading is kept
// around after the probe disconnects.
type State struct {
  Reading device.Reading
  LastSeen time.Time
  Connected bool
  Quality device.ConnectionQuality
  HasReading bool
}

func (s State) String() string {
  if !s.HasReading {
    return "state:never-seen"
  }

  return fmt.Sprintf("state[connected=%v, quality=%v, lastSeen=%v, %v]",
    s.Connected, s.Quality, s.LastSeen.Format(time.RFC3339), s.Reading)
}
