package main

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/throttlite/throttlite/internal/throttle"
)

const (
	simUsers         = 100
	simEventsPerUser = 100
	simWorkers       = 10
)

// runSimulation drives an in-process engine with synthetic traffic: a
// single-threaded high-load pass over many keys, then concurrent workers
// hammering one engine. Useful as a smoke test and a rough throughput probe.
func runSimulation(logger zerolog.Logger, window int64) {
	logger.Info().Int64("window", window).Msg("simulation start")

	engine := throttle.New(window)

	var processed, throttled int
	start := time.Now()
	for user := 0; user < simUsers; user++ {
		key := "user" + uuid.NewString()[:8]
		ts := int64(0)
		for i := 0; i < simEventsPerUser; i++ {
			ts += rand.Int63n(11)
			if engine.ShouldProcess(ts, uuid.NewString(), key) {
				processed++
			} else {
				throttled++
			}
		}
	}
	elapsed := time.Since(start)

	total := simUsers * simEventsPerUser
	logger.Info().
		Int("total", total).
		Int("processed", processed).
		Int("throttled", throttled).
		Int("keys", engine.KeyCount()).
		Dur("elapsed", elapsed).
		Float64("events_per_sec", float64(total)/elapsed.Seconds()).
		Msg("high load pass done")

	// concurrent pass: one key per worker, contention on the shared engine
	concurrent := throttle.New(window)
	var accepted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < simWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := "worker" + uuid.NewString()[:8]
			ts := int64(0)
			for i := 0; i < simEventsPerUser; i++ {
				ts += rand.Int63n(4)
				if concurrent.ShouldProcess(ts, uuid.NewString(), key) {
					accepted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	logger.Info().
		Int64("accepted", accepted.Load()).
		Int("keys", concurrent.KeyCount()).
		Msg("concurrent pass done")

	logger.Info().Msg("simulation complete")
}
