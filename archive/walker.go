// Package archive reads stylesheet bundles packed into zip archives.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
)

// MaxEntrySize limits uncompressed size of a single stylesheet.
const MaxEntrySize = 16 << 20

// Entry is a stylesheet read from archive.
type Entry struct {
	// Name is slash separated path relative to the walked prefix.
	Name     string
	Data     []byte
	Modified time.Time
}

// WalkFunc is called for each selected file. The rel argument is path of
// the file relative to prefix passed to Walk. If an error is returned,
// processing stops.
type WalkFunc func(rel string, file *zip.File) error

// Walk visits files of the archive in natural order of their names. When
// prefix names a file only this file is visited. Otherwise files under
// prefix directory (whole archive when prefix is empty) with base name
// matching pattern are selected. Archives with absolute or parent relative
// entries are rejected.
func Walk(ctx context.Context, archive, prefix, pattern string, walkFn WalkFunc) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}
	prefix = strings.Trim(path.Clean("/"+prefix), "/")

	r, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return fmt.Errorf("archive %s: unsafe path (absolute or contains path traversal): %w", archive, err)
	}
	if err != nil {
		return err
	}
	defer r.Close()

	selected := make(map[string]*zip.File)
	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		switch {
		case name == prefix:
			selected[path.Base(name)] = f
		case prefix == "" || strings.HasPrefix(name, prefix+"/"):
			if ok, _ := path.Match(pattern, path.Base(name)); ok {
				selected[strings.TrimPrefix(name, prefix+"/")] = f
			}
		}
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := walkFn(name, selected[name]); err != nil {
			return err
		}
	}
	return nil
}

// Load reads all files selected by Walk.
func Load(ctx context.Context, archive, prefix, pattern string) ([]Entry, error) {
	var entries []Entry
	err := Walk(ctx, archive, prefix, pattern, func(rel string, f *zip.File) error {
		data, err := ReadFile(f)
		if err != nil {
			return fmt.Errorf("zip entry %q: %w", f.Name, err)
		}
		entries = append(entries, Entry{Name: rel, Data: data, Modified: f.Modified})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadFile returns content of archived file refusing to inflate more than
// MaxEntrySize bytes.
func ReadFile(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("file is too large (%d bytes)", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("file is too large (over %d bytes)", MaxEntrySize)
	}
	return data, nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
