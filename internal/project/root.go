package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestName is the file name looked up by FindManifest.
const ManifestName = "mend.toml"

// gradleMarkers identify the root directory of a Gradle build.
var gradleMarkers = []string{"settings.gradle.kts", "settings.gradle", "gradlew"}

// FindManifest walks up from startDir to locate mend.toml. The search does not
// leave the repository: a directory holding .git is the last one inspected.
func FindManifest(startDir string) (path string, ok bool, err error) {
	err = walkUp(startDir, func(dir string) (bool, error) {
		candidate := filepath.Join(dir, ManifestName)
		found, err := exists(candidate)
		if err != nil || found {
			path, ok = candidate, found
			return true, err
		}
		return exists(filepath.Join(dir, ".git"))
	})
	if err != nil {
		return "", false, err
	}
	return path, ok, nil
}

// FindProjectRoot returns the directory containing mend.toml or, without one,
// the nearest Gradle build root (settings.gradle[.kts] or gradlew).
func FindProjectRoot(startDir string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil {
		return "", false, err
	}
	if ok {
		return filepath.Dir(manifestPath), true, nil
	}
	err = walkUp(startDir, func(dir string) (bool, error) {
		for _, m := range gradleMarkers {
			found, err := exists(filepath.Join(dir, m))
			if err != nil {
				return true, err
			}
			if found {
				root, ok = dir, true
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return "", false, err
	}
	return root, ok, nil
}

// walkUp calls visit for startDir and each parent until visit says stop or
// the filesystem root is passed.
func walkUp(startDir string, visit func(dir string) (stop bool, err error)) error {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		stop, err := visit(dir)
		if err != nil || stop {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

func exists(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	return false, nil
}
