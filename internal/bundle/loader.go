package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

const (
	opResolve = "resolve model"
	opCompile = "compile model"
	opLoad    = "load model"
)

// Verifier checks that a weights file can be loaded by the inference runtime
type Verifier interface {
	Verify(weightsPath string, m *Manifest) error
}

// Artifact is a compiled model ready to be loaded
type Artifact struct {
	Dir      string
	Metadata *Metadata
	Compiled bool // produced by this Resolve call
}

// WeightsPath returns the path of the compiled weights
func (a *Artifact) WeightsPath() string {
	return filepath.Join(a.Dir, compiledWeights)
}

// Loader locates, compiles and caches the model
type Loader struct {
	dirs     []string
	name     string
	verifier Verifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewLoader creates a loader probing dirs for <name>.modelc and <name>.modelpkg
func NewLoader(dirs []string, name string, verifier Verifier, logger *zap.Logger) *Loader {
	return &Loader{
		dirs:     dirs,
		name:     name,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve returns the compiled artifact, compiling the source bundle first
// when no compiled form exists yet
func (l *Loader) Resolve() (*Artifact, error) {
	if dir, ok := find(l.dirs, l.name, compiledSuffix); ok {
		l.logger.Info("Found compiled model", zap.String("path", dir))
		return openArtifact(dir)
	}

	src, ok := find(l.dirs, l.name, sourceSuffix)
	if !ok {
		return nil, models.NewError(models.CodeModelNotFound, opResolve, "",
			fmt.Errorf("no %s%s or %s%s in %v", l.name, compiledSuffix, l.name, sourceSuffix, l.dirs))
	}

	l.logger.Info("Found model bundle, compiling", zap.String("path", src))
	return l.Compile(src)
}

// Recompile rebuilds the compiled artifact from the first source bundle
// found, even when a compiled form already exists
func (l *Loader) Recompile() (*Artifact, error) {
	src, ok := find(l.dirs, l.name, sourceSuffix)
	if !ok {
		return nil, models.NewError(models.CodeModelNotFound, opCompile, "",
			fmt.Errorf("no %s%s in %v", l.name, sourceSuffix, l.dirs))
	}
	return l.Compile(src)
}

// Compile turns the source bundle at src into a compiled artifact stored next
// to it, replacing any previous compiled artifact
func (l *Loader) Compile(src string) (*Artifact, error) {
	fail := func(err error) (*Artifact, error) {
		return nil, models.NewError(models.CodeCompilationFailed, opCompile, src, err)
	}

	manifest, err := readManifest(filepath.Join(src, manifestFile))
	if err != nil {
		return fail(fmt.Errorf("failed to read manifest: %w", err))
	}
	if manifest.Name == "" {
		manifest.Name = l.name
	}

	weights := filepath.Join(src, manifest.Weights)
	digest, err := fileDigest(weights)
	if err != nil {
		return fail(fmt.Errorf("failed to read weights: %w", err))
	}

	if l.verifier != nil {
		if err := l.verifier.Verify(weights, manifest); err != nil {
			return fail(fmt.Errorf("weights rejected: %w", err))
		}
	}

	parent := filepath.Dir(src)
	tmp, err := os.MkdirTemp(parent, "."+l.name+compiledSuffix+"-*")
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(tmp) // no-op after a successful rename

	if err := copyFile(weights, filepath.Join(tmp, compiledWeights)); err != nil {
		return fail(fmt.Errorf("failed to copy weights: %w", err))
	}

	md := &Metadata{
		Manifest:      *manifest,
		FormatVersion: FormatVersion,
		SourceDigest:  digest,
		CompiledAt:    l.now().UTC(),
	}
	md.Weights = compiledWeights
	if err := writeMetadata(filepath.Join(tmp, metadataFile), md); err != nil {
		return fail(fmt.Errorf("failed to write metadata: %w", err))
	}

	dest := filepath.Join(parent, l.name+compiledSuffix)
	if err := os.RemoveAll(dest); err != nil {
		return fail(fmt.Errorf("failed to remove stale artifact: %w", err))
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fail(fmt.Errorf("failed to move artifact into place: %w", err))
	}

	l.logger.Info("Compiled model saved",
		zap.String("path", dest),
		zap.String("digest", digest))

	return &Artifact{Dir: dest, Metadata: md, Compiled: true}, nil
}

// openArtifact reads the metadata of a compiled artifact
func openArtifact(dir string) (*Artifact, error) {
	md, err := readMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, models.NewError(models.CodeLoadFailed, opLoad, dir, err)
	}

	a := &Artifact{Dir: dir, Metadata: md}
	if _, err := os.Stat(a.WeightsPath()); err != nil {
		return nil, models.NewError(models.CodeLoadFailed, opLoad, dir, err)
	}
	return a, nil
}

// fileDigest returns the hex sha256 of the file at path
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
