package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// writeSnapshot serializes the whole map to path as a gzip-compressed JSON
// blob, staged through path+".tmp" and renamed into place so readers never
// observe a partially written file. The rename is the only visible state
// transition; on any failure the temp file is removed and the target is
// left as it was.
func writeSnapshot(path string, data bufferPayload) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(map[string]any(data)); err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: encode: %v", ErrPersistFailed, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename: %v", ErrPersistFailed, err)
	}
	return nil
}

// loadSnapshot reads a snapshot back into a map. A missing file yields an
// empty map with no error. A file that cannot be read or decoded also
// yields an empty map: the stored data is lost and the condition is
// logged, never raised. Callers relying on detecting that loss should keep
// their own schema key inside the stored map.
func loadSnapshot(path string, logger *slog.Logger) bufferPayload {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("memory snapshot unreadable, starting empty",
				"path", path, "error", err)
		}
		return newBufferPayload()
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		logger.Warn("memory snapshot corrupt, starting empty",
			"path", path, "error", err)
		return newBufferPayload()
	}
	defer zr.Close()

	var data map[string]any
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		logger.Warn("memory snapshot corrupt, starting empty",
			"path", path, "error", err)
		return newBufferPayload()
	}
	if data == nil {
		return newBufferPayload()
	}
	return bufferPayload(data)
}

// removeSnapshot deletes the snapshot file. A missing file is not an error.
func removeSnapshot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}
