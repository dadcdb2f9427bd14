// Package safego launches background goroutines that survive panics. The
// audit write path and the suspension sweeper run outside any request
// handler, so a panic there would otherwise kill the goroutine silently and
// leave the trail or the sweep permanently stalled.
package safego

import "log/slog"

// Go runs fn on a new goroutine, recovering and logging any panic instead of
// letting it take the process down. Use it for fire-and-forget work; anything
// whose failure the caller must observe should run synchronously instead.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}
