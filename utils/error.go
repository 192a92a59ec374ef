package utils

import (
  "context"
  "errors"
)

func ErrorIsAnyOf(err error, targets... error) bool {
  for _, target := range targets {
    if errors.Is(err, target) {
      return true
    }
  }

  return false
}

// IsContextError reports whether err is caused by a canceled or expired context.
func IsContextError(err error) bool {
  return ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded)
}
