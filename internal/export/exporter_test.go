package export

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/IvanShishkin/buckfinder/pkg/models"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// readOnlyFS rejects every write
type readOnlyFS struct {
	billy.Filesystem
}

func (readOnlyFS) TempFile(string, string) (billy.File, error) {
	return nil, os.ErrPermission
}

func (readOnlyFS) OpenFile(string, int, os.FileMode) (billy.File, error) {
	return nil, os.ErrPermission
}

func seed(t *testing.T, fs billy.Filesystem, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
	}
}

func listDir(t *testing.T, fs billy.Filesystem, dir string) []string {
	t.Helper()
	infos, err := fs.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names
}

func readFile(t *testing.T, fs billy.Filesystem, path string) string {
	t.Helper()
	data, err := util.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestSave_CopiesSelection(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/cam/IMG_0001.JPG": "one",
		"/cam/IMG_0002.JPG": "two",
		"/cam/IMG_0003.JPG": "three",
	})
	e := NewExporter(fs, zap.NewNop())

	res, err := e.Save("/out/bucks", []string{"/cam/IMG_0001.JPG", "/cam/IMG_0003.JPG"})
	require.NoError(t, err)

	assert.Equal(t, "/out/bucks", res.SavedPath)
	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, int64(len("one")+len("three")), res.Bytes)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"IMG_0001.JPG", "IMG_0003.JPG"}, res.Files)
	assert.Equal(t, "Saved 2 images to /out/bucks", res.Message)

	assert.Equal(t, []string{"IMG_0001.JPG", "IMG_0003.JPG"}, listDir(t, fs, "/out/bucks"))
	assert.Equal(t, "three", readFile(t, fs, "/out/bucks/IMG_0003.JPG"))
}

func TestSave_DisambiguatesCollisions(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{
		"/cam1/IMG_0001.JPG": "cam1",
		"/cam2/IMG_0001.JPG": "cam2",
		"/out/IMG_0001.JPG":  "already there",
	})
	e := NewExporter(fs, zap.NewNop())

	res, err := e.Save("/out", []string{"/cam1/IMG_0001.JPG", "/cam2/IMG_0001.JPG"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Copied)
	assert.Equal(t, []string{"IMG_0001 (1).JPG", "IMG_0001 (2).JPG"}, res.Files)

	assert.Equal(t, "already there", readFile(t, fs, "/out/IMG_0001.JPG"), "existing file untouched")
	assert.Equal(t, "cam1", readFile(t, fs, "/out/IMG_0001 (1).JPG"))
	assert.Equal(t, "cam2", readFile(t, fs, "/out/IMG_0001 (2).JPG"))
}

func TestSave_MissingSourceIsSkipped(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/cam/a.jpg": "a"})
	e := NewExporter(fs, zap.NewNop())

	res, err := e.Save("/out", []string{"/cam/gone.jpg", "/cam/a.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	assert.Equal(t, int64(1), res.Bytes, "failed copies add nothing")
	assert.Equal(t, []string{"a.jpg"}, res.Files)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "/cam/gone.jpg", res.Failed[0].Path)
	assert.Contains(t, res.Failed[0].Error, string(models.CodeSourceUnreadable))
	assert.Equal(t, "Saved 1 images to /out", res.Message)
	assert.Equal(t, []string{"a.jpg"}, listDir(t, fs, "/out"))
}

func TestSave_EmptySelection(t *testing.T) {
	e := NewExporter(memfs.New(), zap.NewNop())

	_, err := e.Save("/out", nil)
	assert.True(t, errors.Is(err, models.ErrNoSelection), "got %v", err)
}

func TestSave_DestinationUnwritable(t *testing.T) {
	fs := memfs.New()
	seed(t, fs, map[string]string{"/cam/a.jpg": "a"})
	e := NewExporter(readOnlyFS{fs}, zap.NewNop())

	_, err := e.Save("/out", []string{"/cam/a.jpg"})
	assert.True(t, errors.Is(err, models.ErrDestinationUnwritable), "got %v", err)
}

func TestSave_HostFilesystem(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir() + "/nested/out"
	require.NoError(t, os.WriteFile(src+"/buck.png", []byte("png"), 0o644))

	res, err := NewOSExporter(zap.NewNop()).Save(dest, []string{src + "/buck.png"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Copied)
	data, err := os.ReadFile(dest + "/buck.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "check file removed")
}

func TestSplitVolume(t *testing.T) {
	tests := []struct {
		name string
		goos string
		path string
		root string
		rel  string
	}{
		{"Unix absolute", "", "/media/card/DCIM", "/", "/media/card/DCIM"},
		{"Drive letter", "windows", `D:\DCIM\100MEDIA`, `D:\`, `\DCIM\100MEDIA`},
		{"UNC share", "windows", `\\nas\photos\bucks`, `\\nas\photos\`, `\bucks`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.goos == "windows") != (runtime.GOOS == "windows") {
				t.Skip("path form does not apply on " + runtime.GOOS)
			}

			root, rel := splitVolume(tt.path)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.rel, rel)
			assert.Equal(t, filepath.Clean(tt.path), filepath.Join(root, rel))
		})
	}
}

func TestSave_HostFilesystemAcrossDirectories(t *testing.T) {
	srcA, srcB := t.TempDir(), t.TempDir()
	dest := filepath.Join(t.TempDir(), "bucks")
	require.NoError(t, os.WriteFile(filepath.Join(srcA, "IMG_0001.JPG"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcB, "IMG_0001.JPG"), []byte("b"), 0o644))

	res, err := NewOSExporter(zap.NewNop()).Save(dest, []string{
		filepath.Join(srcA, "IMG_0001.JPG"),
		filepath.Join(srcB, "IMG_0001.JPG"),
	})
	require.NoError(t, err)

	assert.Equal(t, dest, res.SavedPath)
	assert.Equal(t, []string{"IMG_0001.JPG", "IMG_0001 (1).JPG"}, res.Files)
	data, err := os.ReadFile(filepath.Join(dest, "IMG_0001 (1).JPG"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}
