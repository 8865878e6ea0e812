package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for processing many files.
type ParallelConfig struct {
	MaxWorkers       int                      // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback         // Optional progress reporting
	ErrorHandler     func(int, string, error) // Optional per-file error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type fileJob struct {
	index int
	path  string
}

type fileResult struct {
	index  int
	result *ImageResult
	err    error
}

// ProcessFilesParallel analyzes the files at paths using a worker pool and
// returns results in input order. Failed files leave a nil entry, are passed
// to the error handler and do not stop the others; the first failure is
// returned as error.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string, config ParallelConfig) ([]*ImageResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(paths))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(paths))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan fileJob, len(paths))
	results := make(chan fileResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.fileWorker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- fileJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*ImageResult, len(paths))
	errs := make([]error, len(paths))
	processed := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		processed++
		if config.ProgressCallback != nil {
			if r.err != nil {
				config.ProgressCallback.OnError(processed, r.err)
			}
			config.ProgressCallback.OnProgress(processed, len(paths))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("%s: %w", paths[i], err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, paths[i], err)
		}
	}
	return ordered, firstError
}

func (p *Pipeline) fileWorker(ctx context.Context, jobs <-chan fileJob, results chan<- fileResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, _, err := p.ProcessFile(ctx, job.path)
			select {
			case results <- fileResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats summarizes a parallel run over files.
type ParallelStats struct {
	TotalImages     int           `json:"total_images"`
	SuccessfulCount int           `json:"successful_count"`
	FailedCount     int           `json:"failed_count"`
	TotalContours   int           `json:"total_contours"`
	FailedContours  int           `json:"failed_contours"`
	TotalDuration   time.Duration `json:"total_duration_ns"`
	AveragePerImage time.Duration `json:"average_per_image_ns"`
}

// CalculateParallelStats aggregates per-image results.
func CalculateParallelStats(results []*ImageResult, duration time.Duration) ParallelStats {
	s := ParallelStats{TotalImages: len(results), TotalDuration: duration}
	for _, r := range results {
		if r == nil || r.Document == nil {
			s.FailedCount++
			continue
		}
		s.SuccessfulCount++
		s.TotalContours += len(r.Document.Contours)
		s.FailedContours += r.Document.Failed()
	}
	if s.TotalImages > 0 {
		s.AveragePerImage = duration / time.Duration(s.TotalImages)
	}
	return s
}
