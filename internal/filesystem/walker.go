package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/IvanShishkin/buckfinder/internal/config"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

const opEnumerate = "enumerate"

// Walker finds candidate images in a folder
type Walker struct {
	config  *config.Config
	logger  *zap.Logger
	exclude map[string]bool
}

// NewWalker creates a new filesystem walker
func NewWalker(cfg *config.Config, logger *zap.Logger) *Walker {
	// Build exclude map for fast lookup
	exclude := make(map[string]bool)
	for _, dir := range cfg.Scan.Exclude {
		exclude[dir] = true
	}

	return &Walker{
		config:  cfg,
		logger:  logger,
		exclude: exclude,
	}
}

// Enumerate returns the absolute paths of all candidate images in folder,
// in lexical order
func (w *Walker) Enumerate(folder string) ([]string, error) {
	files, err := w.List(folder)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}

// List returns the candidate images in folder with their file metadata
func (w *Walker) List(folder string) ([]models.ImageFile, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, models.NewError(models.CodeFolderNotFound, opEnumerate, folder, err)
	}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, models.NewError(models.CodeFolderNotFound, opEnumerate, root, err)
	case err != nil:
		return nil, models.NewError(models.CodeFolderUnreadable, opEnumerate, root, err)
	case !info.IsDir():
		return nil, models.NewError(models.CodeFolderNotFound, opEnumerate, root, errors.New("not a directory"))
	}

	var files []models.ImageFile
	if w.config.Scan.Recursive {
		files, err = w.walkTree(root)
	} else {
		files, err = w.readTop(root)
	}
	if err != nil {
		return nil, models.NewError(models.CodeFolderUnreadable, opEnumerate, root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	w.logger.Debug("Enumerated images",
		zap.String("folder", root),
		zap.Bool("recursive", w.config.Scan.Recursive),
		zap.Int("count", len(files)))

	return files, nil
}

// readTop lists the immediate children of root
func (w *Walker) readTop(root string) ([]models.ImageFile, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var files []models.ImageFile
	for _, entry := range entries {
		if f, ok := w.candidate(filepath.Join(root, entry.Name()), entry); ok {
			files = append(files, f)
		}
	}
	return files, nil
}

// walkTree walks root and all non-excluded subdirectories
func (w *Walker) walkTree(root string) ([]models.ImageFile, error) {
	var files []models.ImageFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("Error accessing path", zap.String("path", path), zap.Error(err))
			return nil // Continue walking
		}

		if d.IsDir() {
			if path != root && w.shouldExclude(d.Name()) {
				w.logger.Debug("Skipping excluded directory", zap.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}

		if f, ok := w.candidate(path, d); ok {
			files = append(files, f)
		}
		return nil
	})
	return files, err
}

// candidate reports whether the entry at path is an image to scan.
// Symlinks are resolved and accepted when they point at a regular file.
func (w *Walker) candidate(path string, d fs.DirEntry) (models.ImageFile, bool) {
	name := d.Name()
	hidden := isHidden(name)
	if hidden && !w.config.Scan.IncludeHidden {
		return models.ImageFile{}, false
	}

	if !w.config.ShouldScanFile(GetExtension(name)) {
		return models.ImageFile{}, false
	}

	var info fs.FileInfo
	var err error
	if d.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
	} else {
		info, err = d.Info()
	}
	if err != nil {
		w.logger.Warn("Error accessing path", zap.String("path", path), zap.Error(err))
		return models.ImageFile{}, false
	}
	if !info.Mode().IsRegular() {
		return models.ImageFile{}, false
	}

	return models.ImageFile{
		Path:     path,
		Name:     name,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		IsHidden: hidden,
	}, true
}

// shouldExclude checks if a directory should be excluded
func (w *Walker) shouldExclude(name string) bool {
	if w.exclude[name] {
		return true
	}
	return isHidden(name) && !w.config.Scan.IncludeHidden
}

// isHidden checks if a file is hidden
func isHidden(name string) bool {
	// Unix-like systems: files starting with dot
	return strings.HasPrefix(name, ".")
}
