// Package parallel fans engine kernels out across goroutines.
//
// Kernels in internal/nn split their work so that every index handed to f
// writes a disjoint region of the output; For itself does no locking.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns a config sized to the CPU count.
//
// Work items in the 3-D kernels are whole (sample, channel) volumes, so a
// chunk of a single item already amortizes the goroutine.
func DefaultConfig() Config {
	return NewConfig(runtime.NumCPU())
}

// NewConfig returns a config using the given number of workers.
// Values below 1 fall back to the CPU count.
func NewConfig(workers int) Config {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return Config{
		Enabled:      workers > 1,
		NumWorkers:   workers,
		MinChunkSize: 1,
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	minChunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || cfg.NumWorkers < 2 || n < 2*minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch iterates the batch*channels grid used by the volume kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
