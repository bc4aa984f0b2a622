package safego

import (
	"go.uber.org/zap"
)

// Go launches a goroutine with panic recovery. A panicking goroutine logs
// the panic value with its stack and exits cleanly instead of crashing the
// proxy.
//
// Usage:
//
//	safego.Go(logger, "policy-watcher", func() {
//	    watcher.Run(ctx)
//	})
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Goroutine panicked",
					zap.String("goroutine", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		fn()
	}()
}
