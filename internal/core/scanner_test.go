package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/internal/filesystem"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockDetector answers by file name. With a gate set, every call announces
// itself on started and blocks until the gate yields.
type mockDetector struct {
	confidence map[string]float32
	broken     map[string]bool
	started    chan string
	gate       chan struct{}

	mu    sync.Mutex
	calls []string
}

func (m *mockDetector) Detect(_ context.Context, path string) (models.DetectionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- path
	}
	if m.gate != nil {
		<-m.gate
	}

	name := filepath.Base(path)
	if m.broken[name] {
		return models.DetectionResult{Path: path}, models.NewError(models.CodeImageDecode, "predict", path, nil)
	}
	if c, ok := m.confidence[name]; ok {
		return models.DetectionResult{Path: path, HasBuck: true, Confidence: c}, nil
	}
	return models.DetectionResult{Path: path}, nil
}

func makeFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
	}
	return dir
}

func newTestCoordinator(det Detector) *Coordinator {
	cfg := &config.Config{}
	logger := zap.NewNop()
	return NewCoordinator(cfg, logger, filesystem.NewWalker(cfg, logger), det)
}

func waitDone(t *testing.T, c *Coordinator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestCoordinator_IdleProgress(t *testing.T) {
	c := newTestCoordinator(&mockDetector{})

	p := c.GetProgress()
	assert.Equal(t, models.StatusIdle, p.Status)
	assert.False(t, p.IsComplete)
	assert.NotNil(t, p.BuckImages)
	assert.Nil(t, c.Summary())
	assert.False(t, c.Cancel())
}

func TestCoordinator_ScenarioOneMatch(t *testing.T) {
	dir := makeFolder(t, "IMG_0001.JPG", "IMG_0002.jpg", "IMG_0003.jpeg")
	c := newTestCoordinator(&mockDetector{confidence: map[string]float32{"IMG_0002.jpg": 0.95}})

	start, err := c.StartScan(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, start.TotalImages)
	assert.NotEmpty(t, start.ScanID)

	waitDone(t, c)

	p := c.GetProgress()
	assert.Equal(t, start.ScanID, p.ScanID)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 3, p.Processed)
	assert.True(t, p.IsComplete)
	assert.Equal(t, models.StatusComplete, p.Status)
	require.Len(t, p.BuckImages, 1)
	assert.InDelta(t, 0.95, p.BuckImages[0].Confidence, 1e-6)
	assert.Equal(t, filepath.Join(dir, "IMG_0002.jpg"), p.BuckImages[0].Path)
	assert.Zero(t, p.Warnings)
}

func TestCoordinator_ScenarioCorruptImage(t *testing.T) {
	dir := makeFolder(t, "a.jpg", "corrupt.jpg", "c.jpg")
	det := &mockDetector{
		confidence: map[string]float32{"c.jpg": 0.88},
		broken:     map[string]bool{"corrupt.jpg": true},
	}
	c := newTestCoordinator(det)

	_, err := c.StartScan(dir)
	require.NoError(t, err)
	waitDone(t, c)

	p := c.GetProgress()
	assert.True(t, p.IsComplete)
	assert.Equal(t, 3, p.Processed)
	assert.Equal(t, 1, p.Warnings)
	assert.Equal(t, []string{filepath.Join(dir, "corrupt.jpg")}, p.Failed)
	require.Len(t, p.BuckImages, 1)
	assert.Equal(t, filepath.Join(dir, "c.jpg"), p.BuckImages[0].Path)
}

func TestCoordinator_ProcessesInEnumerationOrder(t *testing.T) {
	dir := makeFolder(t, "c.jpg", "a.jpg", "b.png")
	det := &mockDetector{}
	c := newTestCoordinator(det)

	_, err := c.StartScan(dir)
	require.NoError(t, err)
	waitDone(t, c)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "c.jpg"),
	}, det.calls)
}

func TestCoordinator_CancelAfterFirstImage(t *testing.T) {
	dir := makeFolder(t, "1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg")
	det := &mockDetector{
		confidence: map[string]float32{"1.jpg": 0.9, "3.jpg": 0.9},
		started:    make(chan string),
		gate:       make(chan struct{}),
	}
	c := newTestCoordinator(det)

	_, err := c.StartScan(dir)
	require.NoError(t, err)

	// First image is in flight; cancel, then let it finish
	<-det.started
	assert.True(t, c.Cancel())
	det.gate <- struct{}{}

	waitDone(t, c)

	p := c.GetProgress()
	assert.True(t, p.IsComplete)
	assert.True(t, p.Cancelled)
	assert.Equal(t, 1, p.Processed)
	assert.Equal(t, 5, p.Total)
	require.Len(t, p.BuckImages, 1)
	assert.Equal(t, filepath.Join(dir, "1.jpg"), p.BuckImages[0].Path)

	assert.False(t, c.Cancel(), "finished job cannot be cancelled")
}

func TestCoordinator_Supersede(t *testing.T) {
	first := makeFolder(t, "a.jpg", "b.jpg", "c.jpg")
	second := makeFolder(t, "x.jpg", "y.jpg")
	det := &mockDetector{
		confidence: map[string]float32{"a.jpg": 0.9, "y.jpg": 0.85},
		started:    make(chan string, 8),
		gate:       make(chan struct{}),
	}
	c := newTestCoordinator(det)

	one, err := c.StartScan(first)
	require.NoError(t, err)
	<-det.started // a.jpg in flight

	two, err := c.StartScan(second)
	require.NoError(t, err)
	assert.NotEqual(t, one.ScanID, two.ScanID)

	p := c.GetProgress()
	assert.Equal(t, two.ScanID, p.ScanID)
	assert.Equal(t, 0, p.Processed)
	assert.Equal(t, 2, p.Total)
	assert.Empty(t, p.BuckImages)

	// Release everything still queued on the gate
	go func() {
		for i := 0; i < 3; i++ {
			det.gate <- struct{}{}
		}
	}()
	waitDone(t, c)

	p = c.GetProgress()
	assert.Equal(t, two.ScanID, p.ScanID)
	assert.Equal(t, 2, p.Processed)
	require.Len(t, p.BuckImages, 1)
	assert.Equal(t, filepath.Join(second, "y.jpg"), p.BuckImages[0].Path)
}

func TestCoordinator_SnapshotInvariants(t *testing.T) {
	names := make([]string, 40)
	conf := make(map[string]float32)
	for i := range names {
		names[i] = fmt.Sprintf("img_%02d.jpg", i)
		if i%3 == 0 {
			conf[names[i]] = 0.9
		}
	}
	dir := makeFolder(t, names...)
	c := newTestCoordinator(&mockDetector{confidence: conf})

	_, err := c.StartScan(dir)
	require.NoError(t, err)

	last := 0
	for {
		p := c.GetProgress()
		require.LessOrEqual(t, p.Processed, p.Total)
		require.LessOrEqual(t, len(p.BuckImages), p.Processed)
		require.GreaterOrEqual(t, p.Processed, last, "processed must never decrease")
		last = p.Processed
		if p.IsComplete {
			break
		}
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 40, last)
}

func TestCoordinator_StartErrors(t *testing.T) {
	tests := []struct {
		name   string
		folder func(t *testing.T) string
		target error
	}{
		{"Missing folder", func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone") }, models.ErrFolderNotFound},
		{"No images", func(t *testing.T) string { return makeFolder(t, "notes.txt") }, models.ErrNoImages},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCoordinator(&mockDetector{})

			_, err := c.StartScan(tt.folder(t))
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			p := c.GetProgress()
			assert.Equal(t, models.StatusError, p.Status)
			assert.NotEmpty(t, p.Error)
			assert.Nil(t, c.Summary(), "no job is created")
		})
	}
}

func TestCoordinator_FailedStartKeepsRunningJob(t *testing.T) {
	dir := makeFolder(t, "a.jpg", "b.jpg")
	det := &mockDetector{started: make(chan string, 4), gate: make(chan struct{})}
	c := newTestCoordinator(det)

	start, err := c.StartScan(dir)
	require.NoError(t, err)
	<-det.started

	_, err = c.StartScan(filepath.Join(dir, "missing"))
	require.Error(t, err)

	p := c.GetProgress()
	assert.Equal(t, start.ScanID, p.ScanID)
	assert.Equal(t, models.StatusScanning, p.Status)

	close(det.gate)
	waitDone(t, c)

	// Once the running job is done the failed start is reported
	p = c.GetProgress()
	assert.Equal(t, models.StatusError, p.Status)
	assert.Equal(t, 2, p.Processed)

	// A successful start clears it
	_, err = c.StartScan(dir)
	require.NoError(t, err)
	waitDone(t, c)
	assert.Equal(t, models.StatusComplete, c.GetProgress().Status)
}

func TestCoordinator_ProgressCallbackAndSummary(t *testing.T) {
	dir := makeFolder(t, "a.jpg", "b.jpg", "c.jpg")
	c := newTestCoordinator(&mockDetector{confidence: map[string]float32{"a.jpg": 0.82, "c.jpg": 0.97}})

	var mu sync.Mutex
	var seen []int
	c.SetProgressCallback(func(processed, total int, path string) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		seen = append(seen, processed)
	})

	_, err := c.StartScan(dir)
	require.NoError(t, err)
	waitDone(t, c)

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, seen)
	mu.Unlock()

	s := c.Summary()
	require.NotNil(t, s)
	assert.Equal(t, 3, s.TotalImages)
	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, Version, s.Version)
	require.Len(t, s.Matches, 2)
	assert.InDelta(t, 0.97, s.Matches[0].Confidence, 1e-6, "ranked by confidence")
	assert.False(t, s.EndTime.Before(s.StartTime))
}
