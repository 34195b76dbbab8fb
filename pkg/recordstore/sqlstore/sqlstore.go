// Package sqlstore serves the record store contract from a postgres database through gorm.
// Tables are created by scripts/migrate from the declared collections.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

const (
	defaultPerPage = 30
	maxPerPage     = 500

	// TimeLayout matches the timestamps the hosted store emits.
	TimeLayout = "2006-01-02 15:04:05.000Z"
)

// Store implements recordstore.Store on top of gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps an open connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// List returns one page of rows from the collection's table.
func (s *Store) List(ctx context.Context, collection string, opts recordstore.ListOptions) (recordstore.ListResult, error) {
	page, perPage := normalizePage(opts.Page, opts.PerPage)

	query := s.db.WithContext(ctx).Table(collection)
	for _, cond := range opts.Filter {
		query = query.Where(clause.Eq{Column: clause.Column{Name: cond.Field}, Value: cond.Value})
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return recordstore.ListResult{}, translate(fmt.Errorf("count %s: %w", collection, err))
	}

	rows := make([]map[string]any, 0, perPage)
	find := query
	for _, col := range parseSort(opts.Sort) {
		find = find.Order(col)
	}
	if err := find.Offset((page - 1) * perPage).Limit(perPage).Find(&rows).Error; err != nil {
		return recordstore.ListResult{}, translate(fmt.Errorf("list %s: %w", collection, err))
	}

	items := make([]recordstore.Record, len(rows))
	for i, row := range rows {
		items[i] = normalize(row)
	}

	return recordstore.ListResult{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
		Items:      items,
	}, nil
}

// Create inserts a row with a generated id and returns it as stored.
func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (recordstore.Record, error) {
	row := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		row[k] = v
	}
	if id, _ := row["id"].(string); id == "" {
		row["id"] = NewID()
	}
	now := s.now().UTC()
	row["created"] = now
	row["updated"] = now

	if err := s.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		return nil, translate(fmt.Errorf("create %s: %w", collection, err))
	}
	return s.get(ctx, collection, row["id"].(string))
}

// Update applies a partial update. id and created are immutable.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) (recordstore.Record, error) {
	changes := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		if k == "id" || k == "created" {
			continue
		}
		changes[k] = v
	}
	changes["updated"] = s.now().UTC()

	res := s.db.WithContext(ctx).Table(collection).Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).Updates(changes)
	if res.Error != nil {
		return nil, translate(fmt.Errorf("update %s/%s: %w", collection, id, res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, recordstore.ErrNotFound)
	}
	return s.get(ctx, collection, id)
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) get(ctx context.Context, collection, id string) (recordstore.Record, error) {
	row := map[string]any{}
	err := s.db.WithContext(ctx).Table(collection).Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).Take(&row).Error
	if err != nil {
		return nil, translate(fmt.Errorf("get %s/%s: %w", collection, id, err))
	}
	return normalize(row), nil
}

// NewID returns a 15 character lowercase alphanumeric id like the hosted store assigns.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return raw[:15]
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// parseSort turns "-created,name" into order clauses.
func parseSort(sort string) []clause.OrderByColumn {
	var cols []clause.OrderByColumn
	for _, part := range strings.Split(sort, ",") {
		part = strings.TrimSpace(part)
		desc := false
		switch {
		case strings.HasPrefix(part, "-"):
			desc = true
			part = part[1:]
		case strings.HasPrefix(part, "+"):
			part = part[1:]
		}
		if part == "" {
			continue
		}
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: part}, Desc: desc})
	}
	return cols
}

// normalize converts driver values to what a JSON transport would deliver.
func normalize(row map[string]any) recordstore.Record {
	rec := make(recordstore.Record, len(row))
	for k, v := range row {
		switch val := v.(type) {
		case time.Time:
			rec[k] = val.UTC().Format(TimeLayout)
		case []byte:
			rec[k] = string(val)
		case int64:
			rec[k] = float64(val)
		case int32:
			rec[k] = float64(val)
		case float32:
			rec[k] = float64(val)
		default:
			rec[k] = val
		}
	}
	return rec
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", recordstore.ErrConflict, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", recordstore.ErrNotFound, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", recordstore.ErrInvalid, err)
	default:
		return err
	}
}
