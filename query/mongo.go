package query

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FieldType tells the compiler how to read a raw filter value.
type FieldType int

const (
	Auto FieldType = iota
	String
	Number
	Bool
)

// Schema maps field paths to their stored types. Fields missing from it
// are coerced by Coerce.
type Schema map[string]FieldType

// MongoFilter compiles the predicates with no schema.
func (q Query) MongoFilter() bson.M {
	return q.MongoFilterFor(nil)
}

// MongoFilterFor compiles the predicates, typing values by schema. All
// predicates on one field share an operator document; an equality next to
// a range becomes $eq.
func (q Query) MongoFilterFor(schema Schema) bson.M {
	filter := bson.M{}
	for _, p := range q.Filter {
		v := schema.value(p.Field, p.Value)
		existing, seen := filter[p.Field]
		ops, isOps := existing.(bson.M)

		switch {
		case !seen && p.Op == Eq:
			filter[p.Field] = v
			continue
		case !seen:
			ops = bson.M{}
		case !isOps:
			ops = bson.M{"$eq": existing}
		}
		ops["$"+string(p.Op)] = v
		filter[p.Field] = ops
	}
	return filter
}

func (s Schema) value(field, raw string) any {
	switch s[field] {
	case String:
		return raw
	case Number:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		return raw
	default:
		return Coerce(raw)
	}
}

func (q Query) MongoSort() bson.D {
	sort := make(bson.D, 0, len(q.Sort))
	for _, k := range q.Sort {
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: k.Field, Value: dir})
	}
	return sort
}

func (q Query) MongoProjection() bson.D {
	flag := 1
	if q.Projection.Exclude {
		flag = 0
	}
	proj := make(bson.D, 0, len(q.Projection.Fields))
	for _, f := range q.Projection.Fields {
		proj = append(proj, bson.E{Key: f, Value: flag})
	}
	return proj
}

// FindOptions carries sort, projection and paging.
func (q Query) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSort(q.MongoSort()).
		SetSkip(int64(q.Skip())).
		SetLimit(int64(q.Limit))
	if proj := q.MongoProjection(); len(proj) > 0 {
		opts.SetProjection(proj)
	}
	return opts
}

// Coerce interprets a raw query value the way it would be typed in JSON.
func Coerce(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if strings.ContainsAny(raw, "0123456789") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
