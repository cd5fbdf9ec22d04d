// Package archive reads corpora of annotation files packed in compressed
// tar archives or laid out in a directory tree.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/FocuswithJustin/annotconv/internal/validation"
	"github.com/ulikunitz/xz"
)

// Entry is one regular file of a corpus. Name is slash separated and
// relative to the archive or directory root.
type Entry struct {
	Name string
	Data []byte
}

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// IsArchive reports whether path names a supported compressed tar archive.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".tar.xz", ".txz", ".tar.gz", ".tgz"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// NewReader opens the archive at path, selecting xz or gzip decompression
// from the file name.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	var reader io.Reader
	var decompressor io.Closer

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		reader = xzr
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		reader = gzr
		decompressor = gzr
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported archive format: %s", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressor.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called for each archive entry. Return true to stop iteration.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling visit for each.
func (r *Reader) Iterate(visit Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		stop, err := visit(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// ReadCorpus returns every regular file under path. An archive path is
// unpacked in memory; any other path must be a directory and is walked.
// Entries are sorted by name. Files larger than validation.MaxFileSize are
// rejected.
func ReadCorpus(path string) ([]Entry, error) {
	var entries []Entry
	var err error
	if IsArchive(path) {
		entries, err = readArchive(path)
	} else {
		entries, err = readDir(path)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func readArchive(path string) ([]Entry, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []Entry
	err = r.Iterate(func(header *tar.Header, content io.Reader) (bool, error) {
		if header.Typeflag != tar.TypeReg {
			return false, nil
		}
		name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(header.Name)), "./")
		if err := validation.ValidatePath(name); err != nil {
			return false, fmt.Errorf("archive entry %q: %w", header.Name, err)
		}
		if header.Size > validation.MaxFileSize {
			return false, fmt.Errorf("archive entry %q: %w", header.Name, validation.ErrFileTooLarge)
		}
		data, err := io.ReadAll(content)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", header.Name, err)
		}
		entries = append(entries, Entry{Name: name, Data: data})
		return false, nil
	})
	return entries, err
}

func readDir(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus %s is neither a directory nor a supported archive", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := validation.ValidateFileSize(path); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
