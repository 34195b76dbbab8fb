// Package memstore is an in-memory record store for development and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

const defaultPerPage = 30

// UniqueIndex declares a set of fields whose combined values must be unique in a collection.
type UniqueIndex struct {
	Collection string
	Fields     []string
}

// Calls counts operations per kind, handy for asserting that nothing hit the store.
type Calls struct {
	List   int
	Create int
	Update int
}

// Total returns the sum of all calls.
func (c Calls) Total() int { return c.List + c.Create + c.Update }

// Store keeps collections in memory in insertion order.
type Store struct {
	mu      sync.Mutex
	data    map[string][]recordstore.Record
	unique  []UniqueIndex
	calls   Calls
	seq     int64
	now     func() time.Time
	failing map[string]error
}

// New creates an empty store enforcing the given unique indexes.
func New(unique ...UniqueIndex) *Store {
	return &Store{
		data:    make(map[string][]recordstore.Record),
		unique:  unique,
		now:     time.Now,
		failing: make(map[string]error),
	}
}

// Seed inserts records without counting calls or checking constraints. Records
// without an id get one.
func (s *Store) Seed(collection string, records ...recordstore.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		rec = rec.Clone()
		if rec.ID() == "" {
			rec["id"] = newID()
		}
		s.stampLocked(rec, true)
		s.data[collection] = append(s.data[collection], rec)
	}
}

// FailNext makes the next call of op ("list", "create", "update") fail with err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[op] = err
}

// Calls returns the call counters.
func (s *Store) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// All returns a copy of every record in collection.
func (s *Store) All(collection string) []recordstore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]recordstore.Record, 0, len(s.data[collection]))
	for _, rec := range s.data[collection] {
		out = append(out, rec.Clone())
	}
	return out
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) List(ctx context.Context, collection string, opts recordstore.ListOptions) (recordstore.ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.List++
	if err := s.takeFailureLocked("list"); err != nil {
		return recordstore.ListResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return recordstore.ListResult{}, err
	}

	var matched []recordstore.Record
	for _, rec := range s.data[collection] {
		if opts.Filter.Match(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	sortRecords(matched, opts.Sort)

	page, perPage := opts.Page, opts.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return recordstore.ListResult{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      append([]recordstore.Record{}, matched[start:end]...),
	}, nil
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (recordstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Create++
	if err := s.takeFailureLocked("create"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := recordstore.Record{}
	for k, v := range fields {
		rec[k] = v
	}
	if rec.ID() == "" {
		rec["id"] = newID()
	}
	s.stampLocked(rec, true)

	if err := s.checkUniqueLocked(collection, rec); err != nil {
		return nil, err
	}

	s.data[collection] = append(s.data[collection], rec)
	return rec.Clone(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) (recordstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.Update++
	if err := s.takeFailureLocked("update"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, existing := range s.data[collection] {
		if existing.ID() != id {
			continue
		}

		next := existing.Clone()
		for k, v := range fields {
			if k == "id" || k == "created" {
				continue
			}
			next[k] = v
		}
		s.stampLocked(next, false)

		if err := s.checkUniqueLocked(collection, next); err != nil {
			return nil, err
		}

		s.data[collection][i] = next
		return next.Clone(), nil
	}

	return nil, fmt.Errorf("%s/%s: %w", collection, id, recordstore.ErrNotFound)
}

func (s *Store) takeFailureLocked(op string) error {
	err, ok := s.failing[op]
	if !ok {
		return nil
	}
	delete(s.failing, op)
	return err
}

func (s *Store) stampLocked(rec recordstore.Record, created bool) {
	// Monotonic offsets keep "created" sorting stable for records made in the same instant.
	s.seq++
	ts := s.now().UTC().Add(time.Duration(s.seq) * time.Microsecond).Format("2006-01-02 15:04:05.000000Z")
	if created {
		if _, ok := rec["created"]; !ok {
			rec["created"] = ts
		}
	}
	rec["updated"] = ts
}

func (s *Store) checkUniqueLocked(collection string, candidate recordstore.Record) error {
	for _, idx := range s.unique {
		if idx.Collection != collection {
			continue
		}

		filter := recordstore.Filter{}
		for _, field := range idx.Fields {
			filter = filter.And(field, candidate[field])
		}

		for _, rec := range s.data[collection] {
			if rec.ID() != candidate.ID() && filter.Match(rec) {
				return fmt.Errorf("%s (%s): %w", collection, strings.Join(idx.Fields, ", "), recordstore.ErrConflict)
			}
		}
	}
	return nil
}

// sortRecords applies a comma separated sort expression such as "-created,name".
func sortRecords(records []recordstore.Record, order string) {
	if strings.TrimSpace(order) == "" {
		return
	}

	keys := strings.Split(order, ",")
	sort.SliceStable(records, func(i, j int) bool {
		for _, key := range keys {
			key = strings.TrimSpace(key)
			desc := strings.HasPrefix(key, "-")
			key = strings.TrimLeft(key, "+-")

			a, b := fmt.Sprint(records[i][key]), fmt.Sprint(records[j][key])
			if a == b {
				continue
			}
			if desc {
				return a > b
			}
			return a < b
		}
		return false
	})
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}
