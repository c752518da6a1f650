package sysfs

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/dockd/internal/errors"
)

// maxLength bounds a single attribute value, terminator included.
const maxLength = 128

// FS performs attribute I/O on the real filesystem. Each call opens,
// transfers and closes its own descriptor.
type FS struct {
	root string
}

// New returns an FS rooted at root. An empty root means "/"; tests point
// it at a temporary directory.
func New(root string) *FS {
	return &FS{root: root}
}

func (f *FS) resolve(path string) string {
	if f.root == "" {
		return path
	}

	return filepath.Join(f.root, path)
}

// Read returns the attribute value with surrounding whitespace removed.
func (f *FS) Read(path string) (value string, err error) {
	errFactory := errors.New()

	file, err := os.Open(f.resolve(path))
	if err != nil {
		return "", errFactory.Wrap(ErrNotFound, err).WithData(path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			value, err = "", errFactory.Wrap(ErrCloseFailed, cerr).WithData(path)
		}
	}()

	buf, err := io.ReadAll(io.LimitReader(file, maxLength-1))
	if err != nil {
		return "", errFactory.Wrap(ErrReadFailed, err).WithData(path)
	}

	return strings.TrimSpace(string(buf)), nil
}

// Write stores value in the attribute. The attribute must already exist.
func (f *FS) Write(path, value string) (err error) {
	errFactory := errors.New()

	file, err := os.OpenFile(f.resolve(path), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return errFactory.Wrap(ErrNotFound, err).WithData(path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errFactory.Wrap(ErrCloseFailed, cerr).WithData(path)
		}
	}()

	if len(value) > maxLength-1 {
		value = value[:maxLength-1]
	}

	if _, err := file.WriteString(value); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err).WithData(path)
	}

	return nil
}

// ReadBool reads a presence/state attribute such as a cable state.
func ReadBool(r Reader, path string) (bool, error) {
	value, err := r.Read(path)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(value) {
	case "yes", "on", "connected":
		return true, nil
	case "no", "off", "disconnected":
		return false, nil
	}

	b, perr := strconv.ParseBool(value)
	if perr != nil {
		if n, nerr := strconv.ParseInt(value, 10, 64); nerr == nil {
			return n != 0, nil
		}
		return false, errors.New().Wrap(ErrInvalidValue, perr).WithData(path)
	}

	return b, nil
}

// WriteUint writes n as plain decimal ASCII.
func WriteUint(w Writer, path string, n uint64) error {
	return w.Write(path, strconv.FormatUint(n, 10))
}
