package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

type filter struct {
	field string
	value any
}

// Query selects documents of one collection by field equality, optionally
// ordered by a single field.
type Query struct {
	collection string
	filters    []filter
	orderBy    string
	dir        Direction
	limit      int
}

func From(collection string) Query { return Query{collection: collection} }

// Where adds an equality filter on a top-level field.
func (q Query) Where(field string, value any) Query {
	q.filters = append(append([]filter(nil), q.filters...), filter{field: field, value: normalize(value)})
	return q
}

func (q Query) OrderBy(field string, dir Direction) Query {
	q.orderBy, q.dir = field, dir
	return q
}

func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

type candidate struct {
	snap   Snapshot
	fields map[string]any
}

// Query runs q. An empty result is a nil slice and a nil error.
func (s *Store) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(selectDoc+` WHERE collection = ? ORDER BY id`), q.collection); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.collection, err)
	}

	var matched []candidate
	for _, r := range rows {
		fields, err := decodeFields([]byte(r.Data))
		if err != nil {
			return nil, fmt.Errorf("query %s: decode %s: %w", q.collection, r.ID, err)
		}
		if q.matches(fields) {
			matched = append(matched, candidate{snap: r.snapshot(), fields: fields})
		}
	}

	if q.orderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i].fields[q.orderBy], matched[j].fields[q.orderBy])
			if q.dir == Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.limit > 0 && len(matched) > q.limit {
		matched = matched[:q.limit]
	}

	var out []Snapshot
	for _, c := range matched {
		out = append(out, c.snap)
	}
	return out, nil
}

func (q Query) matches(fields map[string]any) bool {
	for _, f := range q.filters {
		if !reflect.DeepEqual(fields[f.field], f.value) {
			return false
		}
	}
	return true
}

// normalize brings a Go value into the shape decodeFields produces.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := decodeFields(append(append([]byte(`{"v":`), raw...), '}'))
	if err != nil {
		return v
	}
	return out["v"]
}

// compare orders missing < bool < number < string; other kinds compare equal.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case json.Number:
		fx, _ := strconv.ParseFloat(x.String(), 64)
		fy, _ := strconv.ParseFloat(b.(json.Number).String(), 64)
		switch {
		case fx < fy:
			return -1
		case fx > fy:
			return 1
		}
		return 0
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case json.Number:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
