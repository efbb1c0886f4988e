package main

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// HTTP metrics
var (
	httpRequestsTotal atomic.Int64
	httpErrorsTotal   atomic.Int64
)

// Payment metrics
var (
	boostsTotal            atomic.Int64
	paymentsSucceededTotal atomic.Int64
	paymentsFailedTotal    atomic.Int64
	paymentsSkippedTotal   atomic.Int64
)

// Cache metrics
var (
	cacheHitsTotal   atomic.Int64
	cacheMissesTotal atomic.Int64
)

var serviceStartTime = time.Now()

// IncrementBoosts counts completed boost batches (≥1 success)
func IncrementBoosts() {
	boostsTotal.Add(1)
}

func IncrementPaymentsSucceeded() {
	paymentsSucceededTotal.Add(1)
}

func IncrementPaymentsFailed() {
	paymentsFailedTotal.Add(1)
}

func IncrementPaymentsSkipped(n int64) {
	paymentsSkippedTotal.Add(n)
}

// IncrementCacheHit increments the cache hit counter
func IncrementCacheHit() {
	cacheHitsTotal.Add(1)
}

// IncrementCacheMiss increments the cache miss counter
func IncrementCacheMiss() {
	cacheMissesTotal.Add(1)
}

// metricsHandler exposes counters as JSON
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	metrics := map[string]interface{}{
		"uptime_seconds": int64(time.Since(serviceStartTime).Seconds()),
		"http": map[string]int64{
			"requests_total": httpRequestsTotal.Load(),
			"errors_total":   httpErrorsTotal.Load(),
		},
		"payments": map[string]int64{
			"boosts_total":    boostsTotal.Load(),
			"succeeded_total": paymentsSucceededTotal.Load(),
			"failed_total":    paymentsFailedTotal.Load(),
			"skipped_total":   paymentsSkippedTotal.Load(),
		},
		"cache": map[string]int64{
			"hits_total":   cacheHitsTotal.Load(),
			"misses_total": cacheMissesTotal.Load(),
		},
		"runtime": map[string]interface{}{
			"goroutines":    runtime.NumGoroutine(),
			"heap_alloc_mb": mem.HeapAlloc / 1024 / 1024,
			"num_gc":        mem.NumGC,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}
