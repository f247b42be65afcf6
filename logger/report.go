package logger

import (
	"context"
	"sync"
	"time"
)

// Warn and error counts are accumulated per component so a long batch run
// can report a compact health picture on an interval instead of forcing
// operators to grep the full log.
var (
	countersMu sync.Mutex
	warnCounts = map[string]int64{}
	errCounts  = map[string]int64{}
)

func recordWarn(component string) {
	countersMu.Lock()
	warnCounts[component]++
	countersMu.Unlock()
}

func recordError(component string) {
	countersMu.Lock()
	errCounts[component]++
	countersMu.Unlock()
}

// Snapshot returns copies of the accumulated warn and error counters.
func Snapshot() (warns map[string]int64, errs map[string]int64) {
	countersMu.Lock()
	defer countersMu.Unlock()

	warns = make(map[string]int64, len(warnCounts))
	for k, v := range warnCounts {
		warns[k] = v
	}
	errs = make(map[string]int64, len(errCounts))
	for k, v := range errCounts {
		errs[k] = v
	}
	return warns, errs
}

// ResetCounters clears the accumulated counters. Intended for tests.
func ResetCounters() {
	countersMu.Lock()
	warnCounts = map[string]int64{}
	errCounts = map[string]int64{}
	countersMu.Unlock()
}

// StartReport periodically logs the accumulated warn/error counters until
// the context is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				warns, errs := Snapshot()
				log.WithComponent("report").WithFields(Fields{
					"warnings": warns,
					"errors":   errs,
				}).Info("run report")
			}
		}
	}()
}
