package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// PostgresStatement is one DDL statement tagged with the migration it belongs to.
type PostgresStatement struct {
	Migration string
	SQL       string
}

// PostgresDDL renders the Up changes of migrations as postgres DDL, in order.
// Relations to collections not declared here (the platform's users) become plain
// text columns without a foreign key.
func PostgresDDL(migrations []Migration) ([]PostgresStatement, error) {
	set := NewSet()
	var out []PostgresStatement

	for _, m := range sorted(migrations) {
		for _, change := range m.Up {
			stmts, err := postgresFor(set, change)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Label(), err)
			}
			if err := change.Apply(set); err != nil {
				return nil, fmt.Errorf("%s: %w", m.Label(), err)
			}
			for _, sql := range stmts {
				out = append(out, PostgresStatement{Migration: m.Label(), SQL: sql})
			}
		}
	}
	return out, nil
}

func postgresFor(set *Set, change Change) ([]string, error) {
	switch c := change.(type) {
	case CreateCollection:
		return createTable(set, c.Collection), nil
	case DeleteCollection:
		coll, ok := set.Get(c.ID)
		if !ok {
			return nil, fmt.Errorf("collection %s not found", c.ID)
		}
		return []string{fmt.Sprintf("DROP TABLE IF EXISTS %s", ident(coll.Name))}, nil
	case AddField:
		coll, ok := set.Get(c.CollectionID)
		if !ok {
			return nil, fmt.Errorf("collection %s not found", c.CollectionID)
		}
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", ident(coll.Name), columnDef(set, c.Field))}, nil
	case RemoveField:
		coll, ok := set.Get(c.CollectionID)
		if !ok {
			return nil, fmt.Errorf("collection %s not found", c.CollectionID)
		}
		f, ok := coll.Field(c.FieldID)
		if !ok {
			return nil, fmt.Errorf("%s has no field %s", coll.Name, c.FieldID)
		}
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", ident(coll.Name), ident(f.Name))}, nil
	default:
		return nil, fmt.Errorf("unsupported change %T", change)
	}
}

func createTable(set *Set, c Collection) []string {
	cols := []string{
		`"id" TEXT PRIMARY KEY`,
		`"created" TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`"updated" TIMESTAMPTZ NOT NULL DEFAULT now()`,
	}
	for _, f := range c.Fields {
		cols = append(cols, columnDef(set, f))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", ident(c.Name), strings.Join(cols, ",\n  "))}
	for _, idx := range c.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		fields := make([]string, len(idx.Fields))
		for i, f := range idx.Fields {
			fields[i] = ident(f)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, ident(idx.Name), ident(c.Name), strings.Join(fields, ", ")))
	}
	return stmts
}

func columnDef(set *Set, f Field) string {
	var b strings.Builder
	b.WriteString(ident(f.Name))

	switch f.Type {
	case FieldNumber:
		b.WriteString(" DOUBLE PRECISION")
	case FieldBool:
		b.WriteString(" BOOLEAN NOT NULL DEFAULT false")
	default:
		b.WriteString(" TEXT")
	}

	if f.Required && f.Type != FieldBool {
		b.WriteString(" NOT NULL")
	}

	switch f.Type {
	case FieldNumber:
		if f.Min != nil {
			fmt.Fprintf(&b, " CHECK (%s >= %s)", ident(f.Name), strconv.FormatFloat(*f.Min, 'f', -1, 64))
		}
		if f.Max != nil {
			fmt.Fprintf(&b, " CHECK (%s <= %s)", ident(f.Name), strconv.FormatFloat(*f.Max, 'f', -1, 64))
		}
	case FieldSelect:
		if len(f.Values) > 0 {
			quoted := make([]string, len(f.Values))
			for i, v := range f.Values {
				quoted[i] = literal(v)
			}
			fmt.Fprintf(&b, " CHECK (%s IN (%s))", ident(f.Name), strings.Join(quoted, ", "))
		}
	case FieldRelation:
		if target, ok := set.Get(f.Collection); ok {
			fmt.Fprintf(&b, " REFERENCES %s (\"id\")", ident(target.Name))
			if f.CascadeDelete {
				b.WriteString(" ON DELETE CASCADE")
			}
		}
	}
	return b.String()
}

func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func literal(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
