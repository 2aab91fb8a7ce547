package model

import "clinic/backend/helper"

const (
	IdentityColumn  = "id"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
)

type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key"`
}

func (c Column) IsText() bool { return helper.IsTextType(c.Type) }

type Columns []Column

func (cs Columns) Has(name string) bool {
	for _, c := range cs {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Searchable returns the names of text-typed columns.
func (cs Columns) Searchable() []string {
	var names []string
	for _, c := range cs {
		if c.IsText() {
			names = append(names, c.Name)
		}
	}
	return names
}

// Writable returns column names in table order, minus the excluded ones.
func (cs Columns) Writable(exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	var names []string
	for _, c := range cs {
		if !skip[c.Name] {
			names = append(names, c.Name)
		}
	}
	return names
}

// OrderColumn picks the column used for newest-first ordering: id, then the
// first primary key column, then the first column.
func (cs Columns) OrderColumn() string {
	if len(cs) == 0 {
		return ""
	}
	if cs.Has(IdentityColumn) {
		return IdentityColumn
	}
	for _, c := range cs {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return cs[0].Name
}
