package persist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"pkt.systems/pslog"
)

// ErrMalformed wraps decode failures of an existing file.
var ErrMalformed = errors.New("malformed state file")

// File is a JSON document persisted atomically at a fixed path.
type File struct {
	path string
	log  pslog.Logger
}

// NewFile constructs a persistent JSON file in the given directory.
func NewFile(dir, name string) (*File, error) {
	return NewFileWithLogger(dir, name, nil)
}

// NewFileWithLogger constructs a persistent JSON file with logging.
func NewFileWithLogger(dir, name string, logger pslog.Logger) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("file name is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)
	if logger != nil {
		logger = logger.With("state_file", path)
	}
	return &File{path: path, log: logger}, nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Exists reports whether the file is present on disk.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Load decodes the file into target. It reports false when the file is missing.
// Decode failures are returned wrapped in ErrMalformed.
func (f *File) Load(target any) (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if f.log != nil {
				f.log.Debug("state load miss")
			}
			return false, nil
		}
		if f.log != nil {
			f.log.Warn("state load failed", "err", err)
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		if f.log != nil {
			f.log.Warn("state load failed", "err", err)
		}
		return false, errors.Join(ErrMalformed, err)
	}
	if f.log != nil {
		f.log.Trace("state load ok", "bytes", len(data))
	}
	return true, nil
}

// Save writes value as indented JSON via a temp file and rename.
func (f *File) Save(value any) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		f.saveFailed(err)
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		f.saveFailed(err)
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*.tmp")
	if err != nil {
		f.saveFailed(err)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		f.saveFailed(err)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		f.saveFailed(err)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		f.saveFailed(err)
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		f.saveFailed(err)
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		f.saveFailed(err)
		return err
	}
	if f.log != nil {
		f.log.Trace("state save ok", "bytes", len(data))
	}
	return nil
}

func (f *File) saveFailed(err error) {
	if f.log != nil {
		f.log.Warn("state save failed", "err", err)
	}
}
