package database

import (
	"context"
	"strings"

	"github.com/km-arc/go-modular/framework/errs"
	"github.com/km-arc/go-modular/framework/metadata"
)

// Repository reads and writes the table declared for entity type T. Columns
// map onto T's db struct tags; the first declared column is the key.
type Repository[T any] struct {
	db      Capability
	table   string
	columns []string
}

// NewRepository builds a repository from T's entity declaration.
func NewRepository[T any](defs *metadata.Registry, db Capability) (*Repository[T], error) {
	t := metadata.TypeOf[T]()
	facts, err := metadata.Facts[metadata.EntityFacts](defs, metadata.KindEntity, t, "")
	if err != nil {
		return nil, errs.Database(err, "entity %s not declared", t)
	}
	if facts.Table == "" {
		return nil, errs.Definition("entity %s has no table", t)
	}
	return &Repository[T]{db: db, table: facts.Table, columns: facts.Columns}, nil
}

func (r *Repository[T]) Table() string { return r.table }

// All returns every row of the table.
func (r *Repository[T]) All(ctx context.Context) ([]T, error) {
	s, err := r.db.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var out []T
	if err := s.Select(ctx, &out, "SELECT "+r.selectList()+" FROM "+r.table); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the row whose key column equals id. A missing row yields
// sql.ErrNoRows.
func (r *Repository[T]) Get(ctx context.Context, id any) (T, error) {
	var out T
	key, err := r.key()
	if err != nil {
		return out, err
	}

	s, err := r.db.Connect(ctx)
	if err != nil {
		return out, err
	}
	defer s.Close()

	err = s.Get(ctx, &out, "SELECT "+r.selectList()+" FROM "+r.table+" WHERE "+key+" = $1", id)
	return out, err
}

// Insert writes entity, binding every declared column from its db tags.
func (r *Repository[T]) Insert(ctx context.Context, entity T) error {
	if len(r.columns) == 0 {
		return errs.Definition("entity table %s declares no columns", r.table)
	}

	s, err := r.db.Connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	named := make([]string, len(r.columns))
	for i, c := range r.columns {
		named[i] = ":" + c
	}
	query := "INSERT INTO " + r.table + " (" + strings.Join(r.columns, ", ") + ") VALUES (" + strings.Join(named, ", ") + ")"
	_, err = s.NamedExec(ctx, query, entity)
	return err
}

func (r *Repository[T]) selectList() string {
	if len(r.columns) == 0 {
		return "*"
	}
	return strings.Join(r.columns, ", ")
}

func (r *Repository[T]) key() (string, error) {
	if len(r.columns) == 0 {
		return "", errs.Definition("entity table %s declares no key column", r.table)
	}
	return r.columns[0], nil
}
