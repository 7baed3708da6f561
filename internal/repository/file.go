// Package repository provides persistence implementations for the resource
// collections: a flat JSON file and PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when a created record reuses an existing id.
	ErrDuplicateID = errors.New("duplicate id")
)

// FileRecordRepository keeps every collection in memory and persists the
// whole database to a single JSON file after each write.
type FileRecordRepository struct {
	mu   sync.RWMutex
	fs   afero.Fs
	path string
	data models.Snapshot
}

// NewFileRecordRepository opens the JSON file at path, creating an empty
// database when the file does not exist yet.
func NewFileRecordRepository(fs afero.Fs, path string) (*FileRecordRepository, error) {
	r := &FileRecordRepository{
		fs:   fs,
		path: path,
		data: make(models.Snapshot),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the records of a collection matching every filter field, in
// insertion order.
func (r *FileRecordRepository) List(_ context.Context, collection string, filter map[string]string) ([]models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Record, 0)
	for _, rec := range r.data[collection] {
		if rec.Matches(filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Get returns one record by id.
func (r *FileRecordRepository) Get(_ context.Context, collection string, id models.ID) (models.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexLocked(collection, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return r.data[collection][i].Clone(), nil
}

// Create stores a new record. A missing id is replaced by the next free
// numeric id of the collection.
func (r *FileRecordRepository) Create(_ context.Context, collection string, rec models.Record) (models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec = rec.Clone()
	id := rec.ID()
	if id.IsZero() {
		id = nextID(r.data[collection])
	} else if r.indexLocked(collection, id) >= 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateID, collection, id)
	}
	rec["id"] = idValue(id)

	r.data[collection] = append(r.data[collection], rec)
	if err := r.saveLocked(); err != nil {
		r.data[collection] = r.data[collection][:len(r.data[collection])-1]
		return nil, err
	}
	return rec.Clone(), nil
}

// Replace overwrites a record entirely, keeping its id.
func (r *FileRecordRepository) Replace(_ context.Context, collection string, id models.ID, rec models.Record) (models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(collection, id)
	if i < 0 {
		return nil, ErrNotFound
	}

	prev := r.data[collection][i]
	rec = rec.Clone()
	rec["id"] = prev["id"]
	r.data[collection][i] = rec
	if err := r.saveLocked(); err != nil {
		r.data[collection][i] = prev
		return nil, err
	}
	return rec.Clone(), nil
}

// Delete removes one record by id.
func (r *FileRecordRepository) Delete(ctx context.Context, collection string, id models.ID) error {
	n, err := r.DeleteMany(ctx, collection, []models.ID{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every record whose id is in ids and reports how many
// were removed.
func (r *FileRecordRepository) DeleteMany(_ context.Context, collection string, ids []models.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id.String()] = struct{}{}
	}

	prev := r.data[collection]
	kept := make([]models.Record, 0, len(prev))
	for _, rec := range prev {
		if _, ok := drop[rec.ID().String()]; !ok {
			kept = append(kept, rec)
		}
	}
	removed := int64(len(prev) - len(kept))
	if removed == 0 {
		return 0, nil
	}

	r.data[collection] = kept
	if err := r.saveLocked(); err != nil {
		r.data[collection] = prev
		return 0, err
	}
	return removed, nil
}

// Reset replaces the whole database with snapshot.
func (r *FileRecordRepository) Reset(_ context.Context, snapshot models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.data
	r.data = make(models.Snapshot, len(snapshot))
	for collection, records := range snapshot {
		copied := make([]models.Record, 0, len(records))
		for _, rec := range records {
			copied = append(copied, rec.Clone())
		}
		r.data[collection] = copied
	}
	if err := r.saveLocked(); err != nil {
		r.data = prev
		return err
	}
	return nil
}

func (r *FileRecordRepository) indexLocked(collection string, id models.ID) int {
	for i, rec := range r.data[collection] {
		if rec.ID().Equal(id) {
			return i
		}
	}
	return -1
}

func (r *FileRecordRepository) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode data file: %w", err)
	}
	for collection, records := range snapshot {
		if records == nil {
			records = make([]models.Record, 0)
		}
		r.data[collection] = records
	}
	return nil
}

func (r *FileRecordRepository) saveLocked() error {
	tmp := r.path + ".tmp"
	file, err := r.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create data temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.data); err != nil {
		file.Close()
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("encode data file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("sync data file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("close data temp file: %w", err)
	}

	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// nextID returns one more than the largest numeric id in records.
func nextID(records []models.Record) models.ID {
	var highest int64
	for _, rec := range records {
		if n, ok := rec.ID().Int(); ok && n > highest {
			highest = n
		}
	}
	return models.NewID(highest + 1)
}

// idValue stores numeric ids as JSON numbers so the file keeps the seed's shape.
func idValue(id models.ID) any {
	if n, ok := id.Int(); ok && models.NewID(n) == id {
		return float64(n)
	}
	return id.String()
}

// sortedKeys returns the filter keys in a stable order.
func sortedKeys(filter map[string]string) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
