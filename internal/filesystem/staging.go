package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
)

// freeSpaceBuffer is kept free on the staging volume for system stability.
const freeSpaceBuffer = 100 * 1024 * 1024

// Staging manages the scratch directory downloaded archives are written to.
// Paths are unique per call so concurrent tasks never collide.
type Staging struct {
	dir string
}

func NewStaging(dir string) *Staging {
	return &Staging{dir: dir}
}

// NewPath returns a fresh, unused archive path inside the staging directory.
func (s *Staging) NewPath() string {
	return filepath.Join(s.dir, uuid.NewString()+".jar")
}

func checkDiskSpace(dir string, required uint64) error {
	usage, err := disk.Usage(dir)
	if err != nil {
		return fmt.Errorf("failed to check disk space: %w", err)
	}

	if usage.Free < required+freeSpaceBuffer {
		return fmt.Errorf("disk full: required %d bytes, available %d bytes", required, usage.Free)
	}
	return nil
}

// PrepareDirs creates the parent directory of every path once and checks
// that required bytes fit on each directory's volume.
func PrepareDirs(paths []string, required uint64) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		if err := checkDiskSpace(dir, required); err != nil {
			return err
		}
	}
	return nil
}
