// Package option carries composable query modifiers for the generic store.
package option

import "gorm.io/gorm"

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type orderBy struct {
	clause string
}

func (o orderBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.clause)
}

// WithOrder orders the result set by the given clause.
func WithOrder(clause string) QueryOption {
	return orderBy{clause: clause}
}

type limit struct {
	n int
}

func (l limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(l.n)
}

// WithLimit caps the result set size.
func WithLimit(n int) QueryOption {
	return limit{n: n}
}

type preload struct {
	association string
	args        []interface{}
}

func (p preload) Apply(db *gorm.DB) *gorm.DB {
	return db.Preload(p.association, p.args...)
}

// WithPreload eagerly loads an association.
func WithPreload(association string, args ...interface{}) QueryOption {
	return preload{association: association, args: args}
}
