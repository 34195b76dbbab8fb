package migrations

import (
	"gorm.io/gorm"

	"github.com/mo-amir99/lms-learner-go/internal/schema"
)

// RegisterSchema registers one migration per schema version, each executing the
// postgres DDL rendered for it.
func RegisterSchema(r *Registry, all []schema.Migration) error {
	stmts, err := schema.PostgresDDL(all)
	if err != nil {
		return err
	}

	var (
		order  []string
		byName = make(map[string][]string)
	)
	for _, stmt := range stmts {
		if _, ok := byName[stmt.Migration]; !ok {
			order = append(order, stmt.Migration)
		}
		byName[stmt.Migration] = append(byName[stmt.Migration], stmt.SQL)
	}

	for _, name := range order {
		sqls := byName[name]
		err := r.Register(name, func(tx *gorm.DB) error {
			for _, sql := range sqls {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
