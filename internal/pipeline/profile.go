package pipeline

import (
	"runtime"
	"sync/atomic"
)

// Profiler aggregates simple counters/timers across multiple runs.
type Profiler struct {
	TraceTimeNs      atomic.Int64
	AnalyzeTimeNs    atomic.Int64
	ImagesProcessed  atomic.Int64
	ContoursAnalyzed atomic.Int64
	ContoursFailed   atomic.Int64
}

// Record adds one processed image.
func (p *Profiler) Record(traceNs, analyzeNs int64, analyzed, failed int) {
	p.TraceTimeNs.Add(traceNs)
	p.AnalyzeTimeNs.Add(analyzeNs)
	p.ImagesProcessed.Add(1)
	p.ContoursAnalyzed.Add(int64(analyzed))
	p.ContoursFailed.Add(int64(failed))
}

// Snapshot returns cumulative metrics in milliseconds for readability.
func (p *Profiler) Snapshot() map[string]any {
	imgs := p.ImagesProcessed.Load()
	trace := p.TraceTimeNs.Load()
	analyze := p.AnalyzeTimeNs.Load()
	out := map[string]any{
		"images":            imgs,
		"contours_analyzed": p.ContoursAnalyzed.Load(),
		"contours_failed":   p.ContoursFailed.Load(),
		"trace_ms_total":    trace / 1_000_000,
		"analyze_ms_total":  analyze / 1_000_000,
	}
	if imgs > 0 {
		out["trace_ms_per_image"] = float64(trace) / 1_000_000.0 / float64(imgs)
		out["analyze_ms_per_image"] = float64(analyze) / 1_000_000.0 / float64(imgs)
	}
	return out
}

// MemStats summarizes memory usage information.
type MemStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

// GetMemStats captures current memory statistics.
func GetMemStats() MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		Goroutines:      runtime.NumGoroutine(),
	}
}
