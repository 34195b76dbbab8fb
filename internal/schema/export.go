package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

type exportedField struct {
	System      bool           `json:"system"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        FieldType      `json:"type"`
	Required    bool           `json:"required"`
	Presentable bool           `json:"presentable"`
	Unique      bool           `json:"unique"`
	Options     map[string]any `json:"options"`
}

type exportedCollection struct {
	ID         string          `json:"id"`
	Created    string          `json:"created,omitempty"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	System     bool            `json:"system"`
	Schema     []exportedField `json:"schema"`
	Indexes    []string        `json:"indexes"`
	ListRule   *string         `json:"listRule"`
	ViewRule   *string         `json:"viewRule"`
	CreateRule *string         `json:"createRule"`
	UpdateRule *string         `json:"updateRule"`
	DeleteRule *string         `json:"deleteRule"`
	Options    map[string]any  `json:"options"`
}

// ExportJSON renders a collection in the platform's import format.
func ExportJSON(c Collection) ([]byte, error) {
	out := exportedCollection{
		ID:         c.ID,
		Created:    c.Created,
		Name:       c.Name,
		Type:       c.Type,
		Schema:     make([]exportedField, 0, len(c.Fields)),
		Indexes:    make([]string, 0, len(c.Indexes)),
		ListRule:   c.Rules.List,
		ViewRule:   c.Rules.View,
		CreateRule: c.Rules.Create,
		UpdateRule: c.Rules.Update,
		DeleteRule: c.Rules.Delete,
		Options:    map[string]any{},
	}
	if out.Type == "" {
		out.Type = "base"
	}

	for _, f := range c.Fields {
		out.Schema = append(out.Schema, exportedField{
			ID:       f.ID,
			Name:     f.Name,
			Type:     f.Type,
			Required: f.Required,
			Options:  fieldOptions(f),
		})
	}
	for _, idx := range c.Indexes {
		out.Indexes = append(out.Indexes, indexSQL(c.Name, idx))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", c.Name, err)
	}
	return data, nil
}

func fieldOptions(f Field) map[string]any {
	switch f.Type {
	case FieldText:
		return map[string]any{"min": nil, "max": nil, "pattern": ""}
	case FieldNumber:
		return map[string]any{"min": f.Min, "max": f.Max, "noDecimal": f.NoDecimal}
	case FieldSelect:
		return map[string]any{"maxSelect": 1, "values": f.Values}
	case FieldRelation:
		return map[string]any{
			"collectionId":  f.Collection,
			"cascadeDelete": f.CascadeDelete,
			"minSelect":     nil,
			"maxSelect":     1,
			"displayFields": nil,
		}
	case FieldURL:
		return map[string]any{"exceptDomains": nil, "onlyDomains": nil}
	default:
		return map[string]any{}
	}
}

func indexSQL(table string, idx Index) string {
	quoted := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		quoted[i] = "`" + f + "`"
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s `%s` ON `%s` (%s)", kind, idx.Name, table, strings.Join(quoted, ", "))
}
