package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Version is reported in scan summaries; overridden at link time
var Version = "0.1.0"

// ProgressCallback is called after every processed image
type ProgressCallback func(processed, total int, path string)

// Enumerator lists the candidate images of a folder
type Enumerator interface {
	Enumerate(folder string) ([]string, error)
}

// Detector classifies a single image. A non-nil error is a per-image
// warning; the result is still used.
type Detector interface {
	Detect(ctx context.Context, path string) (models.DetectionResult, error)
}

// job is one scan run. Fields under mu are shared with pollers.
type job struct {
	id       string
	folder   string
	paths    []string
	started  time.Time
	callback ProgressCallback
	logEvery rate.Sometimes

	mu        sync.RWMutex
	status    models.ScanStatus
	processed int
	results   []models.DetectionResult
	failed    []string
	cancelled bool
	finished  time.Time

	cancel atomic.Bool
	done   chan struct{}
}

// Coordinator owns the live scan job and drives it in the background
type Coordinator struct {
	config   *config.Config
	logger   *zap.Logger
	walker   Enumerator
	detector Detector

	mu               sync.Mutex
	current          *job
	lastErr          error
	progressCallback ProgressCallback
}

// NewCoordinator creates a new coordinator instance
func NewCoordinator(cfg *config.Config, logger *zap.Logger, walker Enumerator, detector Detector) *Coordinator {
	return &Coordinator{
		config:   cfg,
		logger:   logger,
		walker:   walker,
		detector: detector,
	}
}

// SetProgressCallback sets the progress callback used by subsequent scans
func (c *Coordinator) SetProgressCallback(cb ProgressCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progressCallback = cb
}

// StartScan enumerates folder and starts processing it in the background,
// superseding any running scan. It returns as soon as the job exists.
// Enumeration failures leave the running job (if any) untouched.
func (c *Coordinator) StartScan(folder string) (models.ScanStart, error) {
	paths, err := c.walker.Enumerate(folder)
	if err == nil && len(paths) == 0 {
		err = models.NewError(models.CodeNoImages, "start scan", folder, nil)
	}
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()

		c.logger.Warn("Scan start failed",
			zap.String("folder", folder),
			zap.String("code", string(models.CodeOf(err))),
			zap.Error(err))
		return models.ScanStart{}, err
	}

	j := &job{
		id:       uuid.NewString(),
		folder:   folder,
		paths:    paths,
		started:  time.Now(),
		logEvery: rate.Sometimes{First: 1, Interval: 2 * time.Second},
		status:   models.StatusScanning,
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.current
	if prev != nil {
		prev.cancel.Store(true)
	}
	j.callback = c.progressCallback
	c.current = j
	c.lastErr = nil
	c.mu.Unlock()

	if prev != nil && prev.isScanning() {
		c.logger.Info("Superseding running scan", zap.String("scan_id", prev.id))
	}

	c.logger.Info("Starting scan",
		zap.String("scan_id", j.id),
		zap.String("folder", folder),
		zap.Int("total_images", len(paths)))

	go c.run(j)

	return models.ScanStart{ScanID: j.id, TotalImages: len(paths)}, nil
}

// run processes the job's images in enumeration order
func (c *Coordinator) run(j *job) {
	defer close(j.done)

	total := len(j.paths)
	cancelled := false
	for _, path := range j.paths {
		if j.cancel.Load() {
			cancelled = true
			break
		}

		result, err := c.detector.Detect(context.Background(), path)

		// processed and results move together
		j.mu.Lock()
		j.processed++
		if err != nil {
			j.failed = append(j.failed, path)
		}
		if result.HasBuck {
			j.results = append(j.results, result)
		}
		processed := j.processed
		j.mu.Unlock()

		if j.callback != nil {
			j.callback(processed, total, path)
		}

		j.logEvery.Do(func() {
			c.logger.Info("Scan progress",
				zap.String("scan_id", j.id),
				zap.Int("processed", processed),
				zap.Int("total", total))
		})
	}

	j.mu.Lock()
	j.status = models.StatusComplete
	j.cancelled = cancelled
	j.finished = time.Now()
	matches := len(j.results)
	processed := j.processed
	warnings := len(j.failed)
	j.mu.Unlock()

	c.logger.Info("Scan completed",
		zap.String("scan_id", j.id),
		zap.Duration("duration", j.finished.Sub(j.started)),
		zap.Int("processed", processed),
		zap.Int("matches", matches),
		zap.Int("warnings", warnings),
		zap.Bool("cancelled", cancelled))
}

// GetProgress returns a snapshot of the live job. It never waits on inference.
func (c *Coordinator) GetProgress() models.ScanProgress {
	c.mu.Lock()
	j, lastErr := c.current, c.lastErr
	c.mu.Unlock()

	var p models.ScanProgress
	if j == nil {
		p.Status = models.StatusIdle
		p.BuckImages = []models.DetectionResult{}
	} else {
		p = j.snapshot()
	}

	// A failed start is only reported while nothing is scanning
	if lastErr != nil && p.Status != models.StatusScanning {
		p.Status = models.StatusError
		p.Error = models.Message(lastErr)
	}
	return p
}

// Cancel requests the live job to stop after its in-flight image.
// It reports whether a running job was signalled.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	j := c.current
	c.mu.Unlock()

	if j == nil || !j.isScanning() {
		return false
	}

	j.cancel.Store(true)
	c.logger.Info("Scan cancellation requested", zap.String("scan_id", j.id))
	return true
}

// Wait blocks until the live job finishes or ctx is done
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	j := c.current
	c.mu.Unlock()

	if j == nil {
		return nil
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summary returns the results of the live job, or nil when none exists
func (c *Coordinator) Summary() *models.ScanSummary {
	c.mu.Lock()
	j := c.current
	c.mu.Unlock()

	if j == nil {
		return nil
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	end := j.finished
	if end.IsZero() {
		end = time.Now()
	}

	return &models.ScanSummary{
		ScanID:      j.id,
		ScanPath:    j.folder,
		StartTime:   j.started,
		EndTime:     end,
		Duration:    end.Sub(j.started),
		TotalImages: len(j.paths),
		Processed:   j.processed,
		Cancelled:   j.cancelled,
		Matches:     models.RankByConfidence(j.results),
		Failed:      append([]string(nil), j.failed...),
		Version:     Version,
	}
}

// snapshot copies the shared fields under the read lock
func (j *job) snapshot() models.ScanProgress {
	j.mu.RLock()
	defer j.mu.RUnlock()

	results := make([]models.DetectionResult, len(j.results))
	copy(results, j.results)

	return models.ScanProgress{
		ScanID:     j.id,
		Folder:     j.folder,
		Status:     j.status,
		Processed:  j.processed,
		Total:      len(j.paths),
		BuckImages: results,
		IsComplete: j.status == models.StatusComplete,
		Cancelled:  j.cancelled,
		Warnings:   len(j.failed),
		Failed:     append([]string(nil), j.failed...),
	}
}

func (j *job) isScanning() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status == models.StatusScanning
}
