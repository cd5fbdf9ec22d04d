// Package fileutil reads document inputs and writes converted outputs.
// Inputs ending in .xz, or starting with the xz magic, are decompressed
// transparently; text inputs may be decoded from any charset label known to
// the WHATWG encoding standard.
package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/annotconv/internal/validation"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ReadFile returns the contents of path, decompressing xz data.
func ReadFile(path string) ([]byte, error) {
	if err := validation.ValidateInputFile(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(path), ".xz") || validation.DetectFileType(data) == validation.FileTypeXZ {
		return Decompress(data)
	}
	return data, nil
}

// Decompress decodes an xz stream, refusing output larger than
// validation.MaxFileSize.
func Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	out, err := io.ReadAll(io.LimitReader(r, validation.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("xz decompress: %w", err)
	}
	if len(out) > validation.MaxFileSize {
		return nil, validation.ErrFileTooLarge
	}
	return out, nil
}

// DecodeText converts data in the named charset to UTF-8. An empty name
// means UTF-8. A leading UTF-8 byte order mark is removed.
func DecodeText(data []byte, charset string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("unknown encoding %q: %w", charset, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(bytes.TrimPrefix(out, utf8BOM)), nil
}

// ReadText reads path (see ReadFile) and decodes it from charset.
func ReadText(path, charset string) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data, charset)
}

// WriteFile writes data to path, creating parent directories. The file is
// written to a temporary sibling first and renamed into place.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
