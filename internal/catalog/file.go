package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	smerrors "github.com/Aman-CERP/schemamatch/internal/errors"
)

// snapshot is the on-disk document. A bare list of records is accepted too.
type snapshot struct {
	Version    int               `yaml:"version" json:"version"`
	Attributes []AttributeRecord `yaml:"attributes" json:"attributes"`
}

// FileSource reads records from a YAML or JSON snapshot.
// JSON is valid YAML, so both formats share one decoder.
type FileSource struct {
	path string
}

// NewFileSource creates a source over the snapshot at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the snapshot path.
func (s *FileSource) Path() string {
	return s.path
}

// Attributes reads the snapshot under a shared lock. A snapshot in a
// directory where the lock file cannot be created is read without one.
func (s *FileSource) Attributes(ctx context.Context) ([]AttributeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.path); err != nil {
		return nil, s.readError(err)
	}

	lock := newFileLock(s.path)
	if err := lock.RLock(); err != nil {
		if !lockUnsupported(err) {
			return nil, smerrors.New(smerrors.ErrCodeLockUnavailable, "catalog snapshot is locked", err)
		}
		slog.Debug("catalog_read_unlocked", slog.String("path", s.path), slog.String("reason", err.Error()))
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, s.readError(err)
	}

	records, err := Decode(data)
	if err != nil {
		return nil, smerrors.New(smerrors.ErrCodeCatalogCorrupt,
			fmt.Sprintf("parse catalog file %s", s.path), err)
	}
	return records, nil
}

func (s *FileSource) readError(err error) error {
	if os.IsNotExist(err) {
		return smerrors.New(smerrors.ErrCodeFileNotFound,
			fmt.Sprintf("catalog file %s not found", s.path), err).
			WithSuggestion("Run 'schemamatch export --out " + s.path + "' or fix catalog.file")
	}
	if os.IsPermission(err) {
		return smerrors.New(smerrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot read catalog file %s", s.path), err)
	}
	return smerrors.IOError(fmt.Sprintf("read catalog file %s", s.path), err)
}

// lockUnsupported reports whether err means the lock file cannot be
// created at all, as in a read-only directory.
func lockUnsupported(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}

// Close is a no-op; the file is opened per read.
func (s *FileSource) Close() error {
	return nil
}

// Decode parses a snapshot document or a bare list of records.
func Decode(data []byte) ([]AttributeRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil
	}

	body := root.Content[0]
	switch body.Kind {
	case yaml.SequenceNode:
		var list []AttributeRecord
		if err := body.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var doc snapshot
		if err := body.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Attributes, nil
	default:
		return nil, fmt.Errorf("expected an 'attributes' mapping or a list of records, got %s", body.Tag)
	}
}

// WriteFile writes records as a snapshot, YAML unless path ends in .json.
// The write goes to a temp file that is renamed over path under an
// exclusive lock, so readers never see a partial document.
func WriteFile(path string, records []AttributeRecord) error {
	doc := snapshot{Version: 1, Attributes: records}
	if doc.Attributes == nil {
		doc.Attributes = []AttributeRecord{}
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	lock := newFileLock(path)
	if err := lock.Lock(); err != nil {
		return smerrors.New(smerrors.ErrCodeLockUnavailable, "catalog snapshot is locked", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return smerrors.IOError("create temp catalog file", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return smerrors.IOError("write temp catalog file", err)
	}
	if err := tmp.Close(); err != nil {
		return smerrors.IOError("close temp catalog file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return smerrors.IOError("replace catalog file", err)
	}
	return nil
}
