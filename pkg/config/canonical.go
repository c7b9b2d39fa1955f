package config

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Canonicalize renders a config layer in the canonical nested YAML form.
// Section and key order follow the fileConfig struct; unset values are
// elided entirely so only intentional overrides reach disk.
func Canonicalize(fc *fileConfig) ([]byte, error) {
	return yaml.Marshal(fc)
}

// writeLayer persists a config layer atomically: marshal, write a temp file
// in the same directory, then rename over the target.
func writeLayer(path string, fc *fileConfig) error {
	data, err := Canonicalize(fc)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IoError{Path: dir, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yml")
	if err != nil {
		return &IoError{Path: dir, Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &IoError{Path: tmpName, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &IoError{Path: tmpName, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &IoError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
