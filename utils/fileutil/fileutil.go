package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is the default maximum allowed upload size (100MB)
	MaxFileSize = 100 * 1024 * 1024
)

// ErrTooLarge is returned when an upload exceeds its size limit
var ErrTooLarge = errors.New("file exceeds maximum allowed size")

// LimitFromMB converts a megabyte setting to bytes, falling back to MaxFileSize
func LimitFromMB(mb int) int64 {
	if mb <= 0 {
		return MaxFileSize
	}
	return int64(mb) * 1024 * 1024
}

// CheckSize verifies a known size is within limit
func CheckSize(name string, size, limit int64) error {
	if limit <= 0 {
		limit = MaxFileSize
	}
	if size > limit {
		return fmt.Errorf("%s: size %d bytes exceeds maximum allowed size of %d bytes: %w", name, size, limit, ErrTooLarge)
	}
	return nil
}

// ReadAll reads r up to limit bytes and fails if there is more
func ReadAll(name string, r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, CheckSize(name, int64(len(data)), limit)
	}
	return data, nil
}

// SafeReadFile reads a local file after checking its size
func SafeReadFile(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error checking file size: %w", err)
	}
	if err := CheckSize(filepath.Base(path), info.Size(), limit); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// SafeName strips directories and characters that are awkward in file names
// and zip entries. An empty result becomes "file".
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
