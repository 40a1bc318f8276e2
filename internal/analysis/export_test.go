package analysis

import (
	"context"
	"time"
)

func SetSleep(a *Analyzer, f func(ctx context.Context, d time.Duration) error) {
	a.sleep = f
}
