package collectors

import (
	"context"
	"time"

	"github.com/hetulpatel/arbscan/internal/logging"
)

// RunLoop calls pass immediately and then once per interval until ctx is
// cancelled. A failing pass is logged and the loop keeps going.
func RunLoop(ctx context.Context, name string, interval time.Duration, pass func(context.Context) error) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := pass(ctx); err != nil {
			logging.Errorf("[%s] pass failed: %v", name, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
