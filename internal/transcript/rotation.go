package transcript

import (
	"fmt"
	"os"
	"path/filepath"
)

// RotationConfig holds configuration for transcript rotation.
type RotationConfig struct {
	// MaxBytes is the size threshold of the active file. A write that would
	// push a non-empty file past it rotates first. Zero disables rotation.
	MaxBytes int64
	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
}

// rotatingFile appends records to a path, opening and closing the file on
// every write. Backups are numbered: .1 (newest) to .N (oldest).
type rotatingFile struct {
	path       string
	maxBytes   int64
	maxBackups int
}

func newRotatingFile(path string, cfg RotationConfig) *rotatingFile {
	return &rotatingFile{
		path:       path,
		maxBytes:   cfg.MaxBytes,
		maxBackups: cfg.MaxBackups,
	}
}

// write appends p as a single unit, rotating beforehand when needed.
func (rf *rotatingFile) write(p []byte) error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	if rf.maxBytes > 0 {
		info, err := os.Stat(rf.path)
		if err == nil && info.Size() > 0 && info.Size()+int64(len(p)) > rf.maxBytes {
			if err := rf.rotate(); err != nil {
				return err
			}
		}
	}

	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}

	if _, err := file.Write(p); err != nil {
		file.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync transcript: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close transcript: %w", err)
	}
	return nil
}

// rotate shifts backups up by one, dropping the oldest, and moves the active
// file to .1.
func (rf *rotatingFile) rotate() error {
	if rf.maxBackups <= 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("discard transcript: %w", err)
		}
		return nil
	}

	if err := os.Remove(rf.backupPath(rf.maxBackups)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove oldest backup: %w", err)
	}

	for i := rf.maxBackups - 1; i >= 1; i-- {
		oldPath := rf.backupPath(i)
		if _, err := os.Stat(oldPath); err != nil {
			continue
		}
		if err := os.Rename(oldPath, rf.backupPath(i+1)); err != nil {
			return fmt.Errorf("shift backup %d: %w", i, err)
		}
	}

	if err := os.Rename(rf.path, rf.backupPath(1)); err != nil {
		return fmt.Errorf("rotate transcript: %w", err)
	}
	return nil
}

func (rf *rotatingFile) backupPath(n int) string {
	return BackupPath(rf.path, n)
}

// BackupPath returns the path of the n-th rotated copy of path.
func BackupPath(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
