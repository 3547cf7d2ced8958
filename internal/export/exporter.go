package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/IvanShishkin/buckfinder/internal/filesystem"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"
)

const (
	opSave = "save selected"

	// maxCollisions bounds the " (n)" suffix search per file
	maxCollisions = 10000
)

// Resolver maps an absolute path to the filesystem holding it and the
// path inside that filesystem
type Resolver func(path string) (billy.Filesystem, string)

// Exporter copies selected images into a destination folder
type Exporter struct {
	resolve Resolver
	logger  *zap.Logger
}

// NewExporter creates an exporter over fs. Paths handed to Save are
// interpreted inside fs.
func NewExporter(fs billy.Filesystem, logger *zap.Logger) *Exporter {
	return &Exporter{
		resolve: func(path string) (billy.Filesystem, string) { return fs, path },
		logger:  logger,
	}
}

// NewOSExporter creates an exporter over the host filesystem. Every path is
// opened through the root of its own volume, so drive letters and UNC
// shares work on Windows.
func NewOSExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		resolve: func(path string) (billy.Filesystem, string) {
			root, rel := splitVolume(path)
			return osfs.New(root), rel
		},
		logger: logger,
	}
}

// splitVolume splits an absolute path into its volume root and the rest
func splitVolume(path string) (root, rel string) {
	vol := filepath.VolumeName(path)
	return vol + string(filepath.Separator), path[len(vol):]
}

// Save copies every path into dest under its original file name. Name
// collisions are resolved by suffixing " (1)", " (2)", ... before the
// extension; existing files are never overwritten. A missing or unreadable
// source is recorded in the result and skipped.
func (e *Exporter) Save(dest string, paths []string) (*models.ExportResult, error) {
	if len(paths) == 0 {
		return nil, models.NewError(models.CodeNoSelection, opSave, dest, nil)
	}

	dest = absPath(dest)
	destFS, destPath := e.resolve(dest)
	if err := checkWritable(destFS, destPath); err != nil {
		return nil, models.NewError(models.CodeDestinationUnwritable, opSave, dest, err)
	}

	result := &models.ExportResult{
		SavedPath: dest,
		Files:     []string{},
	}

	for _, src := range paths {
		src = absPath(src)
		srcFS, srcPath := e.resolve(src)
		name, n, err := copyOne(srcFS, srcPath, destFS, destPath)
		if err != nil {
			e.logger.Warn("Failed to copy image",
				zap.String("path", src),
				zap.String("code", string(models.CodeOf(err))),
				zap.Error(err))
			result.Failed = append(result.Failed, models.ExportFailure{Path: src, Error: err.Error()})
			continue
		}

		result.Copied++
		result.Bytes += n
		result.Files = append(result.Files, name)
	}

	result.Message = fmt.Sprintf("Saved %d images to %s", result.Copied, dest)

	e.logger.Info("Export completed",
		zap.String("destination", dest),
		zap.Int("copied", result.Copied),
		zap.String("size", filesystem.FormatSize(result.Bytes)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// checkWritable creates dest and proves a file can be written into it
func checkWritable(fs billy.Filesystem, dest string) error {
	if err := fs.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	check, err := fs.TempFile(dest, ".buckfinder-check-")
	if err != nil {
		return err
	}
	// Name() may be host-absolute; rebuild it inside fs
	name := fs.Join(dest, filepath.Base(check.Name()))
	if err := check.Close(); err != nil {
		return err
	}
	return fs.Remove(name)
}

// copyOne copies src into dest and returns the name it was written under
// and the number of bytes written
func copyOne(srcFS billy.Filesystem, src string, destFS billy.Filesystem, dest string) (string, int64, error) {
	in, err := srcFS.Open(src)
	if err != nil {
		return "", 0, models.NewError(models.CodeSourceUnreadable, opSave, src, err)
	}
	defer in.Close()

	out, name, err := create(destFS, dest, filepath.Base(src))
	if err != nil {
		return "", 0, models.NewError(models.CodeDestinationUnwritable, opSave, dest, err)
	}

	target := destFS.Join(dest, name)
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		destFS.Remove(target)
		return "", 0, models.NewError(models.CodeSourceUnreadable, opSave, src, err)
	}
	if err := out.Close(); err != nil {
		destFS.Remove(target)
		return "", 0, models.NewError(models.CodeDestinationUnwritable, opSave, target, err)
	}

	return name, n, nil
}

// create exclusively opens the first free name derived from name in dest
func create(fs billy.Filesystem, dest, name string) (billy.File, string, error) {
	stem, ext := filesystem.SplitName(name)

	for n := 0; n < maxCollisions; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}

		f, err := fs.OpenFile(fs.Join(dest, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}

	return nil, "", fmt.Errorf("no free name for %s after %d attempts", name, maxCollisions)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
