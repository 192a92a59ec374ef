package collector

import (
  "testing"
  "time"

  "github.com/robertof/go-dinuso-exporter/device"
)

func TestTracker_ConnectivityTimeout(t *testing.T) {
  dev := mustDevice("grill", "aa:bb:cc:dd:ee:ff")
  tracker := NewTracker([]device.Device{dev}, 0)

  now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
  tracker.now = func() time.Time { return now }

  if s := tracker.State(dev); s.HasReading || s.Connected || s.Quality != device.QualityDisconnected {
    t.Fatalf("State() before any reading: got %v", s)
  }

  reading := device.Reading{Temperature: 61.5, TemperatureRounded: 62, RSSI: -45}
  tracker.Observe(dev, reading)

  select {
  case got := <-tracker.Updates():
    if got != dev {
      t.Fatalf("Updates(): got %v, wanted %v", got, dev)
    }
  default:
    t.Fatalf("Observe() did not notify Updates()")
  }

  now = now.Add(DefaultDeviceTimeout)
  s := tracker.State(dev)

  if !s.Connected || s.Quality != device.QualityExcellent || s.Reading != reading {
    t.Fatalf("State() at exactly the timeout: got %v, wanted connected excellent", s)
  }

  now = now.Add(time.Second)
  s = tracker.Snapshot()[dev]

  if s.Connected || s.Quality != device.QualityDisconnected {
    t.Fatalf("State() after the timeout: got %v, wanted disconnected", s)
  }

  if !s.HasReading || s.Reading != reading {
    t.Fatalf("State() after the timeout lost the last reading: got %v", s)
  }

  if want := now.Add(-DefaultDeviceTimeout - time.Second); !s.LastSeen.Equal(want) {
    t.Fatalf("LastSeen: got %v, wanted %v", s.LastSeen, want)
  }
}

func TestTracker_UpdatesNeverBlock(t *testing.T) {
  dev := mustDevice("grill", "aa:bb:cc:dd:ee:ff")
  tracker := NewTracker([]device.Device{dev}, time.Second)

  for i := 0; i < 100; i += 1 {
    tracker.Observe(dev, device.Reading{RawTemperature: uint16(i)})
  }

  if got := tracker.State(dev).Reading.RawTemperature; got != 99 {
    t.Fatalf("State() kept reading %d, wanted the latest (99)", got)
  }
}

func TestTracker_Snapshot(t *testing.T) {
  seen := mustDevice("seen", "aa:bb:cc:dd:ee:01")
  unseen := mustDevice("unseen", "aa:bb:cc:dd:ee:02")
  tracker := NewTracker([]device.Device{seen, unseen}, time.Minute)

  tracker.Seed(map[device.Device]device.Reading{seen: {RSSI: -90}})

  snapshot := tracker.Snapshot()

  if len(snapshot) != 2 {
    t.Fatalf("Snapshot(): got %d devices, wanted 2", len(snapshot))
  }

  if s := snapshot[seen]; !s.Connected || s.Quality != device.QualityPoor {
    t.Errorf("Snapshot()[seen]: got %v", s)
  }

  if s := snapshot[unseen]; s.HasReading || s.Connected {
    t.Errorf("Snapshot()[unseen]: got %v", s)
  }
}
