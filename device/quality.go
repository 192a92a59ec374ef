package device

import "strconv"

// RSSI thresholds in dBm.
const (
  RSSIExcellent = -50
  RSSIGood = -70
  RSSIFair = -85
)

type ConnectionQuality uint8

const (
  QualityDisconnected ConnectionQuality = iota
  QualityPoor
  QualityFair
  QualityGood
  QualityExcellent
)

var AllQualities = []ConnectionQuality{
  QualityDisconnected,
  QualityPoor,
  QualityFair,
  QualityGood,
  QualityExcellent,
}

func QualityFromRSSI(rssi int) ConnectionQuality {
  switch {
  case rssi >= RSSIExcellent:
    return QualityExcellent
  case rssi >= RSSIGood:
    return QualityGood
  case rssi >= RSSIFair:
    return QualityFair
  default:
    return QualityPoor
  }
}

func (q ConnectionQuality) String() string {
  switch q {
  case QualityDisconnected:
    return "Disconnected"
  case QualityPoor:
    return "Poor"
  case QualityFair:
    return "Fair"
  case QualityGood:
    return "Good"
  case QualityExcellent:
    return "Excellent"
  default:
    panic("unknown connection quality: " + strconv.Itoa(int(q)))
  }
}

// BatteryBars is the 0-3 battery indicator shown on the probe base.
type BatteryBars uint8

const MaxBatteryBars BatteryBars = 3

// Percent maps bars to 0, 33, 66 or 100.
func (b BatteryBars) Percent() uint8 {
  if b > MaxBatteryBars {
    b = MaxBatteryBars
  }

  return uint8(int(b) * 100 / int(MaxBatteryBars))
}
