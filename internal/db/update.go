package db

import (
	"fmt"
	"strings"
)

// UpdateBuilder collects "column = $n" assignments for partial updates.
type UpdateBuilder struct {
	sets []string
	args []interface{}
}

// Set adds an assignment for column.
func (b *UpdateBuilder) Set(column string, value interface{}) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// Arg appends value and returns its placeholder, for WHERE clauses.
func (b *UpdateBuilder) Arg(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *UpdateBuilder) Empty() bool { return len(b.sets) == 0 }

func (b *UpdateBuilder) SetClause() string { return strings.Join(b.sets, ", ") }

func (b *UpdateBuilder) Args() []interface{} { return b.args }
