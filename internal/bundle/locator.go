package bundle

import (
	"os"
	"path/filepath"
)

const (
	compiledSuffix = ".modelc"
	sourceSuffix   = ".modelpkg"
)

// SearchDirs returns the directories searched for a model, in priority order.
// override (when set) comes first, then locations relative to the executable
// directory, then the working directory. Duplicates keep their first position.
func SearchDirs(override, exeDir, cwd string) []string {
	var dirs []string
	if override != "" {
		dirs = append(dirs, override)
	}
	if exeDir != "" {
		dirs = append(dirs,
			exeDir,
			filepath.Join(exeDir, "..", "Resources"),
			filepath.Join(exeDir, "..", ".."),
			filepath.Join(exeDir, "..", "..", ".."),
		)
	}
	if cwd != "" {
		dirs = append(dirs, cwd, filepath.Join(cwd, ".."))
	}

	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// DefaultSearchDirs resolves SearchDirs for the running process
func DefaultSearchDirs(override string) []string {
	var exeDir string
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		exeDir = filepath.Dir(exe)
	}

	cwd, _ := os.Getwd()
	return SearchDirs(override, exeDir, cwd)
}

// find returns the first existing directory named name+suffix under dirs
func find(dirs []string, name, suffix string) (string, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name+suffix)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path, true
		}
	}
	return "", false
}
