// Package recordstore defines the contract of the remote record database the learner
// front end talks to, plus helpers shared by its implementations.
package recordstore

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/mo-amir99/lms-learner-go/pkg/metrics"
)

// DefaultFullListBatch is the page size FullList requests.
const DefaultFullListBatch = 200

// Record is a single row as returned by the store. System fields are id, created and updated.
type Record map[string]any

// ID returns the store-assigned identifier.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// String returns a field as a string, or "".
func (r Record) String(field string) string {
	v, _ := r[field].(string)
	return v
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ListOptions narrows a list call. Page is 1-based; zero values mean page 1 and the
// store's default page size.
type ListOptions struct {
	Filter  Filter
	Sort    string
	Page    int
	PerPage int
}

// ListResult is one page of records.
type ListResult struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
	Items      []Record `json:"items"`
}

// Store is the remote record database.
type Store interface {
	List(ctx context.Context, collection string, opts ListOptions) (ListResult, error)
	Create(ctx context.Context, collection string, fields map[string]any) (Record, error)
	// Update is partial: fields not present keep their stored values.
	Update(ctx context.Context, collection, id string, fields map[string]any) (Record, error)
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// First returns the first record matching filter, or ErrNoMatch. List errors pass
// through unchanged.
func First(ctx context.Context, store Store, collection string, filter Filter) (Record, error) {
	res, err := store.List(ctx, collection, ListOptions{Filter: filter, Page: 1, PerPage: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, ErrNoMatch
	}
	return res.Items[0], nil
}

// FullList pages through every record matching opts.
func FullList(ctx context.Context, store Store, collection string, opts ListOptions) ([]Record, error) {
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultFullListBatch
	}

	var all []Record
	for page := 1; ; page++ {
		opts.Page = page
		res, err := store.List(ctx, collection, opts)
		if err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", collection, page, err)
		}

		all = append(all, res.Items...)
		if len(res.Items) < opts.PerPage || (res.TotalPages > 0 && page >= res.TotalPages) {
			break
		}
	}

	if all == nil {
		all = []Record{}
	}
	return all, nil
}

// Decode copies a record into a struct using its json tags. Numeric fields are
// converted leniently since JSON transports deliver every number as float64.
func Decode(rec Record, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(rec)); err != nil {
		return fmt.Errorf("decode record %q: %w", rec.ID(), err)
	}
	return nil
}

// Instrumented wraps a store with prometheus call metrics.
func Instrumented(store Store) Store {
	return &instrumented{next: store}
}

type instrumented struct {
	next Store
}

func (s *instrumented) List(ctx context.Context, collection string, opts ListOptions) (ListResult, error) {
	start := time.Now()
	res, err := s.next.List(ctx, collection, opts)
	metrics.RecordStoreCall(collection, "list", err, time.Since(start))
	return res, err
}

func (s *instrumented) Create(ctx context.Context, collection string, fields map[string]any) (Record, error) {
	start := time.Now()
	rec, err := s.next.Create(ctx, collection, fields)
	metrics.RecordStoreCall(collection, "create", err, time.Since(start))
	return rec, err
}

func (s *instrumented) Update(ctx context.Context, collection, id string, fields map[string]any) (Record, error) {
	start := time.Now()
	rec, err := s.next.Update(ctx, collection, id, fields)
	metrics.RecordStoreCall(collection, "update", err, time.Since(start))
	return rec, err
}

func (s *instrumented) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type tokenKey struct{}

// WithToken attaches the caller's auth token for stores that forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached by WithToken.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
