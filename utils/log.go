package utils

import (
  "fmt"

  "github.com/rs/zerolog"
)

func ToZeroLogArray[T fmt.Stringer](arr []T) (ret *zerolog.Array) {
  ret = zerolog.Arr()

  for _, elem := range arr {
    ret = ret.Str(elem.String())
  }

  return ret
}

// LevelFromFlags picks the global log level, trace winning over debug.
func LevelFromFlags(trace, debug bool) zerolog.Level {
  switch {
  case trace:
    return zerolog.TraceLevel
  case debug:
    return zerolog.DebugLevel
  default:
    return zerolog.InfoLevel
  }
}
