package storage

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var ErrInvalidKey = errors.New("invalid object key")

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9 ._()-]{0,127}$`)

var uploadExtensions = map[string]bool{
	".csv":     true,
	".tsv":     true,
	".txt":     true,
	".xlsx":    true,
	".parquet": true,
}

// ValidateKey accepts slash-separated keys made of safe components that end
// in a spreadsheet extension.
func ValidateKey(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	for _, component := range strings.Split(key, "/") {
		if !pathComponentPattern.MatchString(component) {
			return fmt.Errorf("%w: component %q", ErrInvalidKey, component)
		}
	}
	ext := strings.ToLower(path.Ext(key))
	if !uploadExtensions[ext] {
		return fmt.Errorf("%w: unsupported extension %q", ErrInvalidKey, ext)
	}
	return nil
}

// BaseName is the file name used for format detection and display.
func BaseName(key string) string {
	return path.Base(strings.TrimSpace(key))
}
