// Package schema declares the record collections the learner front end depends on as
// versioned, explicit definitions. The hosted platform applies them through its own
// migration runner; scripts/migrate renders them for self-hosted postgres.
package schema

import (
	"fmt"
	"sort"
)

// FieldType is a column kind understood by the record store.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldBool     FieldType = "bool"
	FieldSelect   FieldType = "select"
	FieldRelation FieldType = "relation"
	FieldURL      FieldType = "url"
)

// UsersCollectionID is the platform's built-in auth collection. It is never declared here.
const UsersCollectionID = "_pb_users_auth_"

// Field describes one column. Only the options relevant to Type are read.
type Field struct {
	ID       string
	Name     string
	Type     FieldType
	Required bool

	// relation
	Collection    string
	CascadeDelete bool

	// number
	Min       *float64
	Max       *float64
	NoDecimal bool

	// select
	Values []string
}

// Index is a (possibly unique) index over fields of the owning collection.
type Index struct {
	Name   string
	Unique bool
	Fields []string
}

// Rules are access filters evaluated by the hosted store. A nil rule means superusers only.
type Rules struct {
	List   *string
	View   *string
	Create *string
	Update *string
	Delete *string
}

// Collection is a named set of records.
type Collection struct {
	ID      string
	Name    string
	Type    string
	Created string
	Fields  []Field
	Indexes []Index
	Rules   Rules
}

// Field returns the field with the given id.
func (c *Collection) Field(id string) (Field, bool) {
	for _, f := range c.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// Set is the collection state after a sequence of migrations.
type Set struct {
	byID  map[string]*Collection
	order []string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*Collection)}
}

// Get finds a collection by id or name.
func (s *Set) Get(idOrName string) (*Collection, bool) {
	if c, ok := s.byID[idOrName]; ok {
		return c, true
	}
	for _, id := range s.order {
		if s.byID[id].Name == idOrName {
			return s.byID[id], true
		}
	}
	return nil, false
}

// Collections returns the collections in creation order.
func (s *Set) Collections() []Collection {
	out := make([]Collection, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

func (s *Set) add(c Collection) error {
	if _, exists := s.byID[c.ID]; exists {
		return fmt.Errorf("collection %s already exists", c.ID)
	}
	copied := c
	copied.Fields = append([]Field(nil), c.Fields...)
	copied.Indexes = append([]Index(nil), c.Indexes...)
	s.byID[c.ID] = &copied
	s.order = append(s.order, c.ID)
	return nil
}

func (s *Set) remove(id string) error {
	if _, exists := s.byID[id]; !exists {
		return fmt.Errorf("collection %s not found", id)
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Change is one step of a migration.
type Change interface {
	Apply(set *Set) error
}

// CreateCollection adds a new collection.
type CreateCollection struct {
	Collection Collection
}

func (c CreateCollection) Apply(set *Set) error { return set.add(c.Collection) }

// DeleteCollection removes a collection.
type DeleteCollection struct {
	ID string
}

func (c DeleteCollection) Apply(set *Set) error { return set.remove(c.ID) }

// AddField appends a field to an existing collection.
type AddField struct {
	CollectionID string
	Field        Field
}

func (c AddField) Apply(set *Set) error {
	coll, ok := set.Get(c.CollectionID)
	if !ok {
		return fmt.Errorf("add field %s: collection %s not found", c.Field.Name, c.CollectionID)
	}
	if _, exists := coll.Field(c.Field.ID); exists {
		return fmt.Errorf("add field: %s already has field %s", coll.Name, c.Field.ID)
	}
	coll.Fields = append(coll.Fields, c.Field)
	return nil
}

// RemoveField drops a field by id.
type RemoveField struct {
	CollectionID string
	FieldID      string
}

func (c RemoveField) Apply(set *Set) error {
	coll, ok := set.Get(c.CollectionID)
	if !ok {
		return fmt.Errorf("remove field %s: collection %s not found", c.FieldID, c.CollectionID)
	}
	for i, f := range coll.Fields {
		if f.ID == c.FieldID {
			coll.Fields = append(coll.Fields[:i], coll.Fields[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove field: %s has no field %s", coll.Name, c.FieldID)
}

// Migration is a versioned, reversible list of changes.
type Migration struct {
	Version int64
	Name    string
	Up      []Change
	Down    []Change
}

// Label is the file-style identifier, e.g. 1750608000_created_lesson_progress.
func (m Migration) Label() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Name)
}

// Apply runs the Up changes of migrations in version order on a fresh set.
func Apply(migrations []Migration) (*Set, error) {
	set := NewSet()
	for _, m := range sorted(migrations) {
		for _, change := range m.Up {
			if err := change.Apply(set); err != nil {
				return nil, fmt.Errorf("%s: %w", m.Label(), err)
			}
		}
	}
	return set, nil
}

// Revert runs the Down changes of m against set.
func Revert(set *Set, m Migration) error {
	for _, change := range m.Down {
		if err := change.Apply(set); err != nil {
			return fmt.Errorf("revert %s: %w", m.Label(), err)
		}
	}
	return nil
}

// UniqueIndex is a unique constraint resolved to a collection name.
type UniqueIndex struct {
	Collection string
	Fields     []string
}

// UniqueIndexes lists every unique index in set.
func UniqueIndexes(set *Set) []UniqueIndex {
	var out []UniqueIndex
	for _, c := range set.Collections() {
		for _, idx := range c.Indexes {
			if idx.Unique {
				out = append(out, UniqueIndex{Collection: c.Name, Fields: append([]string(nil), idx.Fields...)})
			}
		}
	}
	return out
}

func sorted(migrations []Migration) []Migration {
	out := append([]Migration(nil), migrations...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func rule(expr string) *string { return &expr }

func float(v float64) *float64 { return &v }
