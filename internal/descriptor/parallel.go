package descriptor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/shapectx/internal/geom"
)

// ParallelConfig holds configuration for parallel contour analysis.
type ParallelConfig struct {
	MaxWorkers int                       // Number of parallel workers (0 = runtime.NumCPU())
	OnResult   func(index int, r Result) // Optional, called from the collecting goroutine
}

// DefaultParallelConfig returns sensible defaults for parallel analysis.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

// Result is the outcome of analyzing one contour. Exactly one of Descriptor
// and Err is set.
type Result struct {
	Descriptor *Descriptor
	Err        error
}

type contourJob struct {
	index   int
	contour geom.Contour
}

type contourResult struct {
	index  int
	result Result
}

// AnalyzeAll analyzes every contour and returns one Result per input index,
// in input order. A failing contour does not affect the others. When ctx is
// canceled the contours not yet analyzed carry ctx.Err().
func AnalyzeAll(ctx context.Context, contours []geom.Contour, config ParallelConfig) []Result {
	out := make([]Result, len(contours))
	if len(contours) == 0 {
		return out
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(contours))

	if workers == 1 {
		for i, c := range contours {
			if err := ctx.Err(); err != nil {
				out[i] = Result{Err: err}
				continue
			}
			out[i] = analyzeOne(c)
			if config.OnResult != nil {
				config.OnResult(i, out[i])
			}
		}
		return out
	}

	jobs := make(chan contourJob, len(contours))
	results := make(chan contourResult, len(contours))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, c := range contours {
			select {
			case jobs <- contourJob{index: i, contour: c}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := make([]bool, len(contours))
	for r := range results {
		out[r.index] = r.result
		done[r.index] = true
		if config.OnResult != nil {
			config.OnResult(r.index, r.result)
		}
	}

	for i := range out {
		if !done[i] {
			out[i] = Result{Err: ctx.Err()}
		}
	}
	return out
}

func worker(ctx context.Context, jobs <-chan contourJob, results chan<- contourResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			results <- contourResult{index: job.index, result: analyzeOne(job.contour)}
		case <-ctx.Done():
			return
		}
	}
}

func analyzeOne(c geom.Contour) Result {
	d, err := Analyze(c)
	return Result{Descriptor: d, Err: err}
}

// Stats summarizes a run of AnalyzeAll.
type Stats struct {
	Total      int           `json:"total" yaml:"total"`
	Analyzed   int           `json:"analyzed" yaml:"analyzed"`
	Failed     int           `json:"failed" yaml:"failed"`
	Duration   time.Duration `json:"duration_ns" yaml:"duration_ns"`
	PerContour time.Duration `json:"average_per_contour_ns" yaml:"average_per_contour_ns"`
}

// CalculateStats counts successes and failures in results.
func CalculateStats(results []Result, duration time.Duration) Stats {
	s := Stats{Total: len(results), Duration: duration}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Analyzed++
		}
	}
	if s.Total > 0 {
		s.PerContour = duration / time.Duration(s.Total)
	}
	return s
}
