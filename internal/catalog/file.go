package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/toolbox/internal/ir"
)

// ErrUnsupportedFormat is returned for catalog files that are neither YAML
// nor CUE.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// document is the on-disk catalog shape shared by YAML and CUE files.
type document struct {
	Items []ir.CatalogItem `json:"items" yaml:"items"`
}

// Parse decodes a catalog document. format is the file extension without
// the dot: "yaml", "yml" or "cue". Every item is validated and ids must be
// unique.
func Parse(data []byte, format string) (*Static, error) {
	var (
		doc document
		err error
	)
	switch strings.ToLower(format) {
	case "yaml", "yml":
		doc, err = parseYAML(data)
	case "cue":
		doc, err = parseCUE(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(doc.Items))
	for i, item := range doc.Items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("items[%d]: duplicate item id %q", i, item.ID)
		}
		seen[item.ID] = true
	}
	return NewStatic(doc.Items...), nil
}

func parseYAML(data []byte) (document, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return document{}, fmt.Errorf("parse YAML catalog: %w", err)
	}
	return doc, nil
}

func parseCUE(data []byte) (document, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data)
	if err := value.Err(); err != nil {
		return document{}, fmt.Errorf("build CUE catalog: %w", err)
	}

	var doc document
	items := value.LookupPath(cue.ParsePath("items"))
	if !items.Exists() {
		return doc, nil
	}
	if err := items.Decode(&doc.Items); err != nil {
		return document{}, fmt.Errorf("decode CUE catalog: %w", err)
	}
	return doc, nil
}

// File is a catalog backed by a YAML or CUE file. Reload re-reads it; a
// failed reload keeps the previous contents.
type File struct {
	path string

	mu      sync.RWMutex
	current *Static
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file the catalog was loaded from.
func (f *File) Path() string {
	return f.path
}

// Reload re-reads the file.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	static, err := Parse(data, strings.TrimPrefix(filepath.Ext(f.path), "."))
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}

	f.mu.Lock()
	f.current = static
	f.mu.Unlock()
	return nil
}

// Get returns the item with id from the last successful load.
func (f *File) Get(ctx context.Context, id string) (ir.CatalogItem, error) {
	return f.snapshot().Get(ctx, id)
}

// List returns all items from the last successful load.
func (f *File) List() []ir.CatalogItem {
	return f.snapshot().List()
}

func (f *File) snapshot() *Static {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}
