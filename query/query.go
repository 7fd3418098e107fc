// Package query turns HTTP query strings into store-neutral list queries.
package query

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Zacison/natours-backend/utils"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
)

// Op is a comparison operator in a filter predicate.
type Op string

const (
	Eq  Op = "eq"
	Gte Op = "gte"
	Gt  Op = "gt"
	Lte Op = "lte"
	Lt  Op = "lt"
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var opKey = regexp.MustCompile(`^([A-Za-z0-9_.]+)\[(gte|gt|lte|lt)\]$`)

// filterKey is a plain field path, optionally followed by one bracketed
// word. Anything else, operator names included, never reaches the store.
var filterKey = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*(\[[A-Za-z0-9_]*\])?$`)

var fieldPath = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// maxSkip bounds (page-1)*limit; pages past it are clamped.
const maxSkip = math.MaxInt32

// hiddenFields are left out of results when no fields are selected.
var hiddenFields = []string{"__v", "createdAt"}

type Predicate struct {
	Field string
	Op    Op
	Value string
}

type SortKey struct {
	Field string
	Desc  bool
}

// Projection selects result fields. Exclude flips the meaning of Fields.
type Projection struct {
	Fields  []string
	Exclude bool
}

type Query struct {
	Filter     []Predicate
	Sort       []SortKey
	Projection Projection
	Page       int
	Limit      int
}

func (q Query) Skip() int {
	return (q.Page - 1) * q.Limit
}

// Parse builds a Query from raw request values. maxLimit caps the page
// size; values below 1 disable the cap. Filter keys that are not plain
// field paths are dropped. The only rejected input is a fields list that
// mixes inclusion and exclusion.
func Parse(values url.Values, maxLimit int) (Query, error) {
	q := Query{
		Filter: parseFilter(values),
		Sort:   parseSort(values.Get("sort")),
		Page:   positiveInt(values.Get("page"), DefaultPage),
		Limit:  positiveInt(values.Get("limit"), DefaultLimit),
	}

	proj, err := parseFields(values.Get("fields"))
	if err != nil {
		return Query{}, err
	}
	q.Projection = proj

	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if lastPage := maxSkip/q.Limit + 1; q.Page > lastPage {
		q.Page = lastPage
	}
	return q, nil
}

func parseFilter(values url.Values) []Predicate {
	keys := make([]string, 0, len(values))
	for k := range values {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, k := range keys {
		if !filterKey.MatchString(k) {
			continue
		}
		v := values.Get(k)
		if m := opKey.FindStringSubmatch(k); m != nil {
			preds = append(preds, Predicate{Field: m[1], Op: Op(m[2]), Value: v})
			continue
		}
		preds = append(preds, Predicate{Field: k, Op: Eq, Value: v})
	}
	return preds
}

func parseSort(raw string) []SortKey {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}
	var keys []SortKey
	for _, part := range splitList(raw) {
		desc := strings.HasPrefix(part, "-")
		if f := strings.TrimPrefix(part, "-"); fieldPath.MatchString(f) {
			keys = append(keys, SortKey{Field: f, Desc: desc})
		}
	}
	return keys
}

func parseFields(raw string) (Projection, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return Projection{Fields: append([]string(nil), hiddenFields...), Exclude: true}, nil
	}

	var include, exclude []string
	for _, p := range parts {
		f := strings.TrimPrefix(p, "-")
		switch {
		case !fieldPath.MatchString(f):
		case f != p:
			exclude = append(exclude, f)
		default:
			include = append(include, f)
		}
	}

	switch {
	case len(include) > 0 && len(exclude) > 0:
		return Projection{}, utils.NewValidation("Cannot mix included and excluded fields")
	case len(exclude) > 0:
		return Projection{Fields: exclude, Exclude: true}, nil
	default:
		return Projection{Fields: include}, nil
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// positiveInt falls back to def for anything that is not an integer >= 1.
func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
