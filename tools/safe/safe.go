package safe

import (
	"PMentor/logger"
	"PMentor/tools/errs"

	"go.uber.org/zap"
)

// Try runs f and turns a panic into an error, so one failing step
// cannot abort the caller's loop.
func Try(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.ErrPanic(r)
		}
	}()
	return f()
}

// SafeGo starts a new goroutine that recovers from panic,
// so that panics don't crash the entire program.
func SafeGo(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[SafeGo] panic recovered", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		f()
	}()
}

// DefaultString returns the dereferenced value of a string pointer,
// or the fallback if the pointer is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
