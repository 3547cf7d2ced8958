package main

import (
	"github.com/IvanShishkin/buckfinder/internal/bundle"
	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/internal/core"
	"github.com/IvanShishkin/buckfinder/internal/detector"
	"github.com/IvanShishkin/buckfinder/internal/filesystem"
	"github.com/IvanShishkin/buckfinder/internal/vision"
	"go.uber.org/zap"
)

func newLoader(cfg *config.Config) *bundle.Loader {
	return bundle.NewLoader(bundle.DefaultSearchDirs(cfg.Model.Dir), cfg.ModelName(), vision.Verifier{}, logger)
}

// loadModel resolves (compiling on first use) and loads the model
func loadModel(cfg *config.Config) (*vision.Handle, error) {
	artifact, err := newLoader(cfg).Resolve()
	if err != nil {
		return nil, err
	}

	handle, err := vision.Load(artifact)
	if err != nil {
		return nil, err
	}

	logger.Info("Model loaded",
		zap.String("path", handle.Location()),
		zap.Bool("compiled_now", artifact.Compiled))
	return handle, nil
}

func newEngine(cfg *config.Config, model detector.Model) *detector.Engine {
	return detector.NewEngine(model, logger, cfg.Detection.InferenceTimeout)
}

func newCoordinator(cfg *config.Config, model detector.Model) *core.Coordinator {
	return core.NewCoordinator(cfg, logger, filesystem.NewWalker(cfg, logger), newEngine(cfg, model))
}
