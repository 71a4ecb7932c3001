package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNotFound is returned by Get when no record has the given name.
var ErrNotFound = errors.New("record not found")

// Store reads and writes named records.
type Store interface {
	Get(ctx context.Context, name string) (*structpb.Struct, error)
	Put(ctx context.Context, name string, rec *structpb.Struct) error
}

// BatchStore is a Store that can write several records atomically.
type BatchStore interface {
	Store
	PutAll(ctx context.Context, recs map[string]*structpb.Struct) error
}

var (
	marshalOpts   = protojson.MarshalOptions{Multiline: true, Indent: "  "}
	unmarshalOpts = protojson.UnmarshalOptions{}
)

// FileStore keeps one JSON file per record in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on the
// first Put.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (f *FileStore) Dir() string { return f.dir }

// Get reads a record.
func (f *FileStore) Get(ctx context.Context, name string) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	rec := &structpb.Struct{}
	if err := unmarshalOpts.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return rec, nil
}

// Put writes a record, replacing any previous version. The file is written
// to a temporary name first and renamed into place.
func (f *FileStore) Put(ctx context.Context, name string, rec *structpb.Struct) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := marshalOpts.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".record-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path(name))
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}
