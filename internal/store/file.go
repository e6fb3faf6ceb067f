package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps each collection in a JSON file under a data directory.
// It is the fallback backend for single-process deployments without
// Postgres. A single mutex serializes all operations, which is what makes
// insert-if-absent atomic here.
type FileStore struct {
	dir   string
	mu    sync.Mutex
	specs map[string]Spec
}

func OpenFile(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	specs := make(map[string]Spec, len(Specs))
	for _, s := range Specs {
		specs[s.Name] = s
	}

	fs := &FileStore{dir: dir, specs: specs}
	for _, s := range Specs {
		path := fs.path(s.Name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
				return nil, fmt.Errorf("failed to init collection file: %w", err)
			}
		}
	}
	return fs, nil
}

func (f *FileStore) Collection(name string) Collection {
	return &fileCollection{store: f, spec: f.specs[name], name: name}
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

type fileCollection struct {
	store *FileStore
	spec  Spec
	name  string
}

// load reads the collection and lazily drops records past their TTL field,
// mirroring what the TTL index does on the real store.
func (c *fileCollection) load() ([]Document, error) {
	raw, err := os.ReadFile(c.store.path(c.name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs []Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("corrupt collection file %s: %w", c.name, err)
	}

	if c.spec.TTLField != "" {
		now := time.Now()
		kept := docs[:0]
		purged := false
		for _, d := range docs {
			if exp, ok := d.Time(c.spec.TTLField); ok && !exp.After(now) {
				purged = true
				continue
			}
			kept = append(kept, d)
		}
		docs = kept
		if purged {
			if err := c.save(docs); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func (c *fileCollection) save(docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	raw, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.store.path(c.name), raw, 0o644)
}

func (c *fileCollection) FindOne(_ context.Context, filter Filter) (Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if matches(d, filter) {
			return d, nil
		}
	}
	return nil, ErrNoDocuments
}

func (c *fileCollection) Find(_ context.Context, filter Filter) ([]Document, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, d := range docs {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *fileCollection) InsertOne(_ context.Context, doc Document) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return err
	}

	norm, err := normalizeDoc(doc)
	if err != nil {
		return err
	}

	// Unique keys are checked inside the critical section, so a concurrent
	// duplicate insert loses here rather than corrupting the ledger.
	for _, keys := range c.spec.UniqueKeys {
		probe := Filter{}
		complete := true
		for _, k := range keys {
			if !norm.Has(k) {
				complete = false
				break
			}
			probe[k] = norm[k]
		}
		if !complete {
			continue
		}
		for _, d := range docs {
			if matches(d, probe) {
				return ErrDuplicateKey
			}
		}
	}

	docs = append(docs, norm)
	return c.save(docs)
}

func (c *fileCollection) UpdateOne(_ context.Context, filter Filter, update Update) (bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return false, err
	}

	for i, d := range docs {
		if !matches(d, filter) {
			continue
		}
		for k, v := range update.Set {
			nv, err := normalizeValue(v)
			if err != nil {
				return false, err
			}
			d[k] = nv
		}
		for k, n := range update.Inc {
			d[k] = float64(d.Int64(k) + n)
		}
		docs[i] = d
		return true, c.save(docs)
	}
	return false, nil
}

func (c *fileCollection) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return 0, err
	}

	kept := docs[:0]
	var removed int64
	for _, d := range docs {
		if matches(d, filter) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.save(kept)
}

func (c *fileCollection) CountDocuments(_ context.Context, filter Filter) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.load()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range docs {
		if matches(d, filter) {
			n++
		}
	}
	return n, nil
}

// normalizeDoc pushes a document through a JSON round-trip so in-memory and
// on-disk representations agree (time.Time becomes an RFC3339 string,
// integers become float64).
func normalizeDoc(doc Document) (Document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var norm Document
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, err
	}
	return norm, nil
}

func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var norm any
	if err := json.Unmarshal(raw, &norm); err != nil {
		return nil, err
	}
	return norm, nil
}

func matches(doc Document, filter Filter) bool {
	for k, v := range filter {
		switch bound := v.(type) {
		case gtBound:
			if !compareBound(doc[k], bound.v, +1) {
				return false
			}
		case ltBound:
			if !compareBound(doc[k], bound.v, -1) {
				return false
			}
		default:
			want, err := normalizeValue(v)
			if err != nil {
				return false
			}
			if !equalValue(doc[k], want) {
				return false
			}
		}
	}
	return true
}

func equalValue(have, want any) bool {
	if have == nil || want == nil {
		return have == nil && want == nil
	}
	// Timestamps may differ in formatting between writers.
	if ht, hok := asTime(have); hok {
		if wt, wok := asTime(want); wok {
			return ht.Equal(wt)
		}
	}
	if hf, hok := asFloat(have); hok {
		if wf, wok := asFloat(want); wok {
			return hf == wf
		}
	}
	return have == want
}

// compareBound reports whether have is on the dir side of want (+1 for
// strictly greater, -1 for strictly less). Absent values never match.
func compareBound(have, want any, dir int) bool {
	if have == nil {
		return false
	}
	if ht, hok := asTime(have); hok {
		if wt, wok := asTime(want); wok {
			if dir > 0 {
				return ht.After(wt)
			}
			return ht.Before(wt)
		}
	}
	if hf, hok := asFloat(have); hok {
		if wf, wok := asFloat(want); wok {
			if dir > 0 {
				return hf > wf
			}
			return hf < wf
		}
	}
	hs, hok := have.(string)
	ws, wok := want.(string)
	if hok && wok {
		if dir > 0 {
			return hs > ws
		}
		return hs < ws
	}
	return false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
