package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	callback := NoOpProgressCallback{}
	callback.OnStart(10)
	callback.OnProgress(5, 10)
	callback.OnComplete()
	callback.OnError(3, assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ").WithWidth(10).WithUpdateInterval(0)

	callback.OnStart(10)
	assert.Contains(t, buf.String(), "Test: 0/10 images")

	buf.Reset()
	callback.OnProgress(5, 10)
	out := buf.String()
	assert.Contains(t, out, "[#####.....]")
	assert.Contains(t, out, "5/10 (50.0%)")

	buf.Reset()
	callback.OnError(6, assert.AnError)
	assert.Contains(t, buf.String(), "Test: Error at image 6")

	buf.Reset()
	callback.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "1 failed")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Test: Completed in")
}

func TestConsoleProgressCallback_Throttling(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "").WithUpdateInterval(time.Hour).WithRate(false)
	callback.OnStart(10)

	buf.Reset()
	callback.OnProgress(1, 10)
	assert.NotEmpty(t, buf.String())

	buf.Reset()
	callback.OnProgress(2, 10)
	assert.Empty(t, buf.String())

	// The final update is never throttled.
	callback.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10")
	assert.NotContains(t, buf.String(), "/s")
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	callback := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)

	callback.OnStart(4)
	callback.OnProgress(1, 4)
	callback.OnProgress(2, 4)
	callback.OnProgress(4, 4)
	callback.OnError(3, assert.AnError)
	callback.OnComplete()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Batch progress"))
	assert.Contains(t, out, "Starting batch")
	assert.Contains(t, out, "Image failed")
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, "Batch completed")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	multi := MultiProgressCallback{a, b}

	multi.OnStart(3)
	multi.OnProgress(1, 3)
	multi.OnError(1, assert.AnError)
	multi.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 3, r.started)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, 1, r.errors)
		assert.True(t, r.completed)
	}
}
