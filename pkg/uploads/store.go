package uploads

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	clone "github.com/huandu/go-clone/generic"
	"github.com/pkg/errors"
)

type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]File
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(files ...File) *MemoryStore {
	m := &MemoryStore{files: map[string]File{}}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *MemoryStore) Get(_ context.Context, id string) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return File{}, ErrNotFound
	}
	return clone.Clone(f), nil
}

func (m *MemoryStore) Put(_ context.Context, f File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = clone.Clone(f)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]File, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, clone.Clone(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DirStore keeps one <id>.json record per file in a directory.
type DirStore struct {
	Dir string
}

var _ Store = (*DirStore)(nil)

func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create uploads dir %s", dir)
	}
	return &DirStore{Dir: dir}, nil
}

func (d *DirStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errors.Errorf("invalid upload id %q", id)
	}
	return filepath.Join(d.Dir, id+".json"), nil
}

func (d *DirStore) Get(_ context.Context, id string) (File, error) {
	p, err := d.path(id)
	if err != nil {
		return File{}, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, errors.Wrapf(err, "read upload %s", id)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return File{}, errors.Wrapf(err, "decode upload %s", id)
	}
	return f, nil
}

func (d *DirStore) Put(_ context.Context, f File) error {
	p, err := d.path(f.ID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(f)
	if err != nil {
		return errors.Wrapf(err, "encode upload %s", f.ID)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "write upload %s", f.ID)
	}
	return errors.Wrapf(os.Rename(tmp, p), "write upload %s", f.ID)
}

func (d *DirStore) List(ctx context.Context) ([]File, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list uploads dir %s", d.Dir)
	}
	var out []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		f, err := d.Get(ctx, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
