// Package storage writes enriched listings to disk.
package storage

import (
	"errors"
	"os"
	"path/filepath"

	"catawiki-scraper/models"
	"catawiki-scraper/utils"
)

// Exporter writes a listing set once per configured format.
type Exporter struct {
	logger  *utils.Logger
	writers []ListingWriter
}

// NewExporter returns an Exporter producing {prefix}.csv and {prefix}.json.
func NewExporter(logger *utils.Logger) *Exporter {
	return &Exporter{
		logger:  logger,
		writers: []ListingWriter{CSVWriter{}, JSONWriter{}},
	}
}

// Export writes every format next to prefix, creating the parent directory
// if needed. The files are replaced together: when any of them cannot be
// written, every target keeps its previous content. It returns the written
// paths in writer order.
func (e *Exporter) Export(listings []*models.EnrichedListing, prefix string) ([]string, error) {
	if dir := filepath.Dir(prefix); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &ExportError{Path: dir, Op: "mkdir", Cause: err}
		}
	}

	files := make([]*stagedFile, 0, len(e.writers))
	defer func() {
		for _, f := range files {
			f.cleanup()
		}
	}()

	for _, w := range e.writers {
		path := prefix + w.Ext()
		data, err := w.Encode(listings)
		if err != nil {
			return nil, &ExportError{Path: path, Op: "encode", Cause: err}
		}
		f, err := stage(path, data)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	if err := commit(files); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		e.logger.Info("[exporter] Saved %d lots → %s", len(listings), f.path)
		paths = append(paths, f.path)
	}
	return paths, nil
}

// rename is swapped in tests to simulate a failing filesystem.
var rename = os.Rename

// stagedFile is a fully written temp file waiting to be renamed onto path.
type stagedFile struct {
	path   string
	tmp    string
	backup string
}

// cleanup removes whatever temp and backup files are left over.
func (f *stagedFile) cleanup() {
	if f.tmp != "" {
		os.Remove(f.tmp)
	}
	if f.backup != "" {
		os.Remove(f.backup)
	}
}

// stage writes data to a temp file in the target directory.
func stage(path string, data []byte) (*stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, &ExportError{Path: path, Op: "create", Cause: err}
	}
	f := &stagedFile{path: path, tmp: tmp.Name()}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		f.cleanup()
		return nil, &ExportError{Path: path, Op: "write", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		f.cleanup()
		return nil, &ExportError{Path: path, Op: "write", Cause: err}
	}
	if err := os.Chmod(f.tmp, 0o644); err != nil {
		f.cleanup()
		return nil, &ExportError{Path: path, Op: "chmod", Cause: err}
	}
	return f, nil
}

// commit renames every staged file into place. Existing targets are moved
// aside first and restored if a later rename fails.
func commit(files []*stagedFile) error {
	for _, f := range files {
		info, err := os.Lstat(f.path)
		if err == nil && !info.Mode().IsRegular() {
			return &ExportError{Path: f.path, Op: "rename", Cause: errors.New("target is not a regular file")}
		}
		if err != nil && !os.IsNotExist(err) {
			return &ExportError{Path: f.path, Op: "stat", Cause: err}
		}
	}

	var done []*stagedFile
	// restore puts the previous file back. A backup that cannot be moved
	// back is left on disk rather than removed.
	restore := func(f *stagedFile) {
		if f.backup != "" {
			_ = rename(f.backup, f.path)
			f.backup = ""
		}
	}
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			f := done[i]
			if f.backup == "" {
				os.Remove(f.path)
				continue
			}
			restore(f)
		}
	}

	for _, f := range files {
		if _, err := os.Lstat(f.path); err == nil {
			f.backup = f.tmp + ".old"
			if err := rename(f.path, f.backup); err != nil {
				f.backup = ""
				rollback()
				return &ExportError{Path: f.path, Op: "backup", Cause: err}
			}
		}
		if err := rename(f.tmp, f.path); err != nil {
			restore(f)
			rollback()
			return &ExportError{Path: f.path, Op: "rename", Cause: err}
		}
		f.tmp = ""
		done = append(done, f)
	}
	return nil
}
