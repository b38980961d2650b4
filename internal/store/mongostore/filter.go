package mongostore

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-listings/query"
)

// Filter translates d into a MongoDB filter document. Attribute names are
// the listing's bson keys, which match the public field names.
func Filter(d query.Descriptor) bson.D {
	filter := bson.D{}

	for _, m := range d.Text {
		filter = append(filter, bson.E{Key: m.Field, Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(m.Value)},
			{Key: "$options", Value: "i"},
		}})
	}

	for _, m := range d.Exact {
		filter = append(filter, bson.E{Key: m.Field, Value: m.Value})
	}

	for _, r := range d.Ranges {
		bounds := bson.D{}
		if r.Min != nil {
			bounds = append(bounds, bson.E{Key: "$gte", Value: *r.Min})
		}
		if r.Max != nil {
			bounds = append(bounds, bson.E{Key: "$lte", Value: *r.Max})
		}
		if len(bounds) > 0 {
			filter = append(filter, bson.E{Key: r.Field, Value: bounds})
		}
	}

	for _, e := range d.Equals {
		filter = append(filter, bson.E{Key: e.Field, Value: e.Value})
	}

	if d.Verified != nil {
		filter = append(filter, bson.E{Key: "isVerified", Value: *d.Verified})
	}

	return filter
}

// sortSpec orders by the requested attribute with _id as the tie-breaker.
func sortSpec(s query.Sort) bson.D {
	if s.Field == "" {
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	}
	dir := 1
	if s.Direction == query.Desc {
		dir = -1
	}
	return bson.D{{Key: s.Field, Value: dir}, {Key: "_id", Value: 1}}
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func bsonKeys(fields ...string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}
