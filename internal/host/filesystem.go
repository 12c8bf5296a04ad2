package host

import (
	stdErrors "errors"
	"io"
	"os"
	"path/filepath"
)

// File is a blob file being written. Sync flushes it to stable storage.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// FileSystem is the file access native blob storage needs.
type FileSystem interface {
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Create(path string) (File, error)
	SyncDir(path string) error
}

// OSFileSystem implements FileSystem using the local OS.
type OSFileSystem struct{}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFileSystem) Remove(path string) error                     { return os.Remove(path) }
func (OSFileSystem) Rename(oldPath, newPath string) error         { return os.Rename(oldPath, newPath) }
func (OSFileSystem) Stat(path string) (os.FileInfo, error)        { return os.Stat(path) }
func (OSFileSystem) Open(path string) (io.ReadCloser, error)      { return os.Open(path) }

func (OSFileSystem) Create(path string) (File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SyncDir flushes the directory entry table of path so a completed rename
// survives a crash.
func (OSFileSystem) SyncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}

// writeStage names the step of writeAtomic that failed.
type writeStage string

const (
	stageMkdir    writeStage = "failed to create blob directory"
	stageConflict writeStage = "blob path conflicts with an existing entry"
	stageClean    writeStage = "failed to remove temporary file"
	stageCreate   writeStage = "failed to create blob file"
	stageWrite    writeStage = "failed to write blob file"
	stageSync     writeStage = "failed to flush blob file"
	stageClose    writeStage = "failed to close blob file"
	stageRename   writeStage = "failed to move blob into place"
	stageSyncDir  writeStage = "failed to flush blob directory"
)

// PathConflictError reports that a blob target collides with an entry of the
// other kind: a stored file where a directory is needed, or the reverse.
type PathConflictError struct {
	Target   string
	Existing string
	IsDir    bool
}

func (e *PathConflictError) Error() string {
	kind := "file"
	if e.IsDir {
		kind = "directory"
	}
	return "existing " + kind + " " + e.Existing + " blocks " + e.Target
}

// writeAtomic writes payload to target through a temporary sibling so a
// reader never sees a partial file. The payload and the rename are flushed
// before it returns. The temporary file is removed on failure.
func writeAtomic(fs FileSystem, target string, payload []byte) (writeStage, error) {
	dir := filepath.Dir(target)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		if conflict := findConflict(fs, target); conflict != nil {
			return stageConflict, conflict
		}
		return stageMkdir, err
	}
	if info, err := fs.Stat(target); err == nil && info.IsDir() {
		return stageConflict, &PathConflictError{Target: target, Existing: target, IsDir: true}
	}

	temp := target + tempSuffix
	if err := fs.Remove(temp); err != nil && !stdErrors.Is(err, os.ErrNotExist) {
		return stageClean, err
	}

	file, err := fs.Create(temp)
	if err != nil {
		return stageCreate, err
	}
	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		_ = fs.Remove(temp)
		return stageWrite, err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = fs.Remove(temp)
		return stageSync, err
	}
	if err := file.Close(); err != nil {
		_ = fs.Remove(temp)
		return stageClose, err
	}
	if err := fs.Rename(temp, target); err != nil {
		_ = fs.Remove(temp)
		return stageRename, err
	}
	if err := fs.SyncDir(dir); err != nil {
		return stageSyncDir, err
	}
	return "", nil
}

// findConflict looks for a regular file among the ancestors of target.
func findConflict(fs FileSystem, target string) *PathConflictError {
	for dir := filepath.Dir(target); ; {
		info, err := fs.Stat(dir)
		if err == nil {
			if info.IsDir() {
				return nil
			}
			return &PathConflictError{Target: target, Existing: dir}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
