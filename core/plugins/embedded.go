// Package plugins holds the registry of format codecs compiled into the
// binary. Format packages register themselves from init; importing
// internal/embedded pulls in every built-in format.
package plugins

import (
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
)

// ReadOptions are passed to every FormatReader.
type ReadOptions struct {
	// Text is the document text, for formats that carry only offsets or
	// token forms.
	Text string
	// DocumentID overrides the id found in the input.
	DocumentID string
	// SourceDB names the source collection.
	SourceDB string
	// Lenient accepts discontinuous spans that are not in canonical form so
	// that a caller can repair them.
	Lenient bool
}

// WriteOptions are passed to every FormatWriter.
type WriteOptions struct {
	DocumentID         string
	IncludeAppositions bool
	KeepDegenerate     bool
}

// DefaultWriteOptions returns the write options used when none are given.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{IncludeAppositions: true}
}

// FormatReader decodes one document.
type FormatReader interface {
	Read(r io.Reader, opts ReadOptions) (*ir.Document, error)
}

// FormatWriter encodes one document and reports what could not be kept.
type FormatWriter interface {
	Write(w io.Writer, d *ir.Document, opts WriteOptions) (*ir.LossReport, error)
}

// Codec describes a registered format.
type Codec struct {
	Name        string
	Description string
	// Extensions are lower-case file extensions including the dot.
	Extensions []string
	Reader     FormatReader // nil if the format cannot be read
	Writer     FormatWriter // nil if the format cannot be written
}

// CanRead reports whether the codec has a reader.
func (c *Codec) CanRead() bool { return c.Reader != nil }

// CanWrite reports whether the codec has a writer.
func (c *Codec) CanWrite() bool { return c.Writer != nil }

// codecRegistry holds all embedded codecs by name.
var codecRegistry = make(map[string]*Codec)

// RegisterCodec registers a codec under its name, replacing any previous one.
func RegisterCodec(c *Codec) {
	if c != nil && c.Name != "" {
		codecRegistry[c.Name] = c
	}
}

// GetCodec returns the codec registered under name.
func GetCodec(name string) (*Codec, error) {
	c, ok := codecRegistry[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewNotFound("format", name)
	}
	return c, nil
}

// HasCodec checks if a codec with the given name exists.
func HasCodec(name string) bool {
	_, ok := codecRegistry[strings.ToLower(name)]
	return ok
}

// ListCodecs returns all registered codecs sorted by name.
func ListCodecs() []*Codec {
	result := make([]*Codec, 0, len(codecRegistry))
	for _, c := range codecRegistry {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// CodecForPath returns the codec whose extensions match path. A trailing
// ".xz" is ignored.
func CodecForPath(path string) (*Codec, error) {
	lower := strings.TrimSuffix(strings.ToLower(path), ".xz")
	ext := filepath.Ext(lower)
	for _, c := range ListCodecs() {
		for _, e := range c.Extensions {
			if e == ext {
				return c, nil
			}
		}
	}
	return nil, errors.NewNotFound("format for extension", ext)
}

// ClearRegistry removes all registered codecs (for testing).
func ClearRegistry() {
	codecRegistry = make(map[string]*Codec)
}

// Unregister removes one codec (for testing).
func Unregister(name string) {
	delete(codecRegistry, name)
}
