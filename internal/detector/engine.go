package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

const opDetect = "detect"

// Engine classifies single images. Failures never escape as a missing
// result: Detect always returns a usable verdict plus an optional warning.
type Engine struct {
	model   Model
	logger  *zap.Logger
	timeout time.Duration

	// set while a timed-out call still occupies the model
	mu          sync.Mutex
	stalled     <-chan struct{}
	stalledPath string
}

// NewEngine creates an engine over model. A timeout of 0 disables the
// per-image inference deadline.
func NewEngine(model Model, logger *zap.Logger, timeout time.Duration) *Engine {
	return &Engine{
		model:   model,
		logger:  logger,
		timeout: timeout,
	}
}

// Detect classifies the image at path. The returned error is a non-fatal
// warning (decode, inference or timeout failure) and has already been logged;
// the result is then {path, false, 0}.
func (e *Engine) Detect(ctx context.Context, path string) (models.DetectionResult, error) {
	result := models.DetectionResult{Path: path}

	dets, err := e.predict(ctx, path)
	if err != nil {
		e.logger.Warn("Detection failed",
			zap.String("path", path),
			zap.String("code", string(models.CodeOf(err))),
			zap.Error(err))
		return result, err
	}

	result.HasBuck, result.Confidence = Classify(dets)

	e.logger.Debug("Classified image",
		zap.String("path", path),
		zap.Int("detections", len(dets)),
		zap.Bool("has_buck", result.HasBuck),
		zap.Float32("confidence", result.Confidence))

	return result, nil
}

type prediction struct {
	dets []Detection
	err  error
}

// predict runs the model, bounded by the engine timeout and ctx
func (e *Engine) predict(ctx context.Context, path string) ([]Detection, error) {
	if e.model == nil {
		return nil, models.NewError(models.CodeInference, opDetect, path, errors.New("model not loaded"))
	}

	if busy, ok := e.busyWith(); ok {
		return nil, models.NewError(models.CodeInferenceTimeout, opDetect, path,
			fmt.Errorf("model still busy with %s", busy))
	}

	done := make(chan prediction, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				done <- prediction{err: models.NewError(models.CodeInference, opDetect, path, fmt.Errorf("panic: %v", r))}
			}
		}()
		dets, err := e.model.Predict(path)
		done <- prediction{dets: dets, err: err}
	}()

	var deadline <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case p := <-done:
		if p.err != nil && models.CodeOf(p.err) == "" {
			return nil, models.NewError(models.CodeInference, opDetect, path, p.err)
		}
		return p.dets, p.err
	case <-deadline:
		// The abandoned call finishes in the background; its result is dropped
		e.markStalled(finished, path)
		return nil, models.NewError(models.CodeInferenceTimeout, opDetect, path,
			fmt.Errorf("no result after %s", e.timeout))
	case <-ctx.Done():
		e.markStalled(finished, path)
		return nil, ctx.Err()
	}
}

// busyWith reports the image an abandoned call is still working on
func (e *Engine) busyWith() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stalled == nil {
		return "", false
	}
	select {
	case <-e.stalled:
		e.stalled, e.stalledPath = nil, ""
		return "", false
	default:
		return e.stalledPath, true
	}
}

func (e *Engine) markStalled(finished <-chan struct{}, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stalled, e.stalledPath = finished, path
}
