package repository

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// MaxLimit caps list queries.
const MaxLimit = 500

// FilterOp is a predicate operator supported by the backing store.
type FilterOp string

const (
	OpEq   FilterOp = "eq"
	OpNeq  FilterOp = "neq"
	OpGt   FilterOp = "gt"
	OpGte  FilterOp = "gte"
	OpLt   FilterOp = "lt"
	OpLte  FilterOp = "lte"
	OpLike FilterOp = "like"
)

var filterOperators = map[FilterOp]string{
	OpEq:   "=",
	OpNeq:  "<>",
	OpGt:   ">",
	OpGte:  ">=",
	OpLt:   "<",
	OpLte:  "<=",
	OpLike: "LIKE",
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Filter is a single column predicate.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// QueryOptions shapes a list query.
type QueryOptions struct {
	Filters []Filter `json:"filters,omitempty"`
	OrderBy string   `json:"orderBy,omitempty"`
	Desc    bool     `json:"desc,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

// validate checks operators and that every referenced column exists on table.
func (o QueryOptions) validate(table *schema.Table) error {
	for _, f := range o.Filters {
		if _, ok := filterOperators[f.Op]; !ok {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if err := checkColumn(table, f.Column); err != nil {
			return err
		}
		if f.Value == nil {
			return fmt.Errorf("filter on %s has no value", f.Column)
		}
	}
	if o.OrderBy != "" {
		if err := checkColumn(table, o.OrderBy); err != nil {
			return err
		}
	}
	if o.Limit < 0 || o.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

// canonical returns a stable encoding so logically identical queries share a cache key.
func (o QueryOptions) canonical() string {
	filters := make([]Filter, len(o.Filters))
	copy(filters, o.Filters)
	sort.SliceStable(filters, func(i, j int) bool {
		a, b := filters[i], filters[j]
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Op != b.Op {
			return a.Op < b.Op
		}
		return fmt.Sprint(a.Value) < fmt.Sprint(b.Value)
	})
	normalized := o
	normalized.Filters = filters
	if len(filters) == 0 {
		normalized.Filters = nil
	}
	normalized.Limit = effectiveLimit(o.Limit)

	raw, err := json.Marshal(normalized)
	if err != nil {
		// Values come from decoded JSON or Go literals; fall back to fmt for anything exotic.
		return fmt.Sprintf("%+v", normalized)
	}
	return string(raw)
}

func (o QueryOptions) apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, f := range o.Filters {
		q = q.Where("? "+filterOperators[f.Op]+" ?", bun.Ident(f.Column), f.Value)
	}
	if o.OrderBy != "" {
		direction := "ASC"
		if o.Desc {
			direction = "DESC"
		}
		q = q.OrderExpr("? "+direction, bun.Ident(o.OrderBy))
	} else {
		q = q.OrderExpr("? ASC", bun.Ident("id"))
	}
	q = q.Limit(effectiveLimit(o.Limit))
	if o.Offset > 0 {
		q = q.Offset(o.Offset)
	}
	return q
}

func effectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func checkColumn(table *schema.Table, column string) error {
	if !identPattern.MatchString(column) {
		return fmt.Errorf("invalid column name %q", column)
	}
	if table != nil && !table.HasField(column) {
		return fmt.Errorf("unknown column %q", column)
	}
	return nil
}
