package query

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-listings/listing"
)

// Kind classifies how a filter parameter constrains results.
type Kind int

const (
	// KindText is a case-insensitive substring match.
	KindText Kind = iota
	// KindExact is an exact categorical match.
	KindExact
	// KindNumber is a numeric attribute, filtered by range or equality.
	KindNumber
	// KindBool is a boolean flag.
	KindBool
	// KindTime is a timestamp, usable only for ordering.
	KindTime
)

// Field describes one filterable or sortable listing attribute.
type Field struct {
	// Name is the public attribute name used in requests, responses and
	// document stores.
	Name string
	// Column is the SQL column name.
	Column string
	Kind   Kind
	// Fold lower-cases exact values before matching.
	Fold bool
}

var fieldIndex = map[string]Field{}

func init() {
	kinds := map[string]Kind{
		"title": KindText, "type": KindText, "state": KindText, "city": KindText,
		"amenities": KindText, "listedBy": KindText, "tags": KindText,
		"furnished": KindExact, "availableFrom": KindExact, "colorTheme": KindExact, "listingType": KindExact,
		"price": KindNumber, "areaSqFt": KindNumber, "bedrooms": KindNumber, "bathrooms": KindNumber, "rating": KindNumber,
		"isVerified": KindBool,
		"createdAt":  KindTime, "updatedAt": KindTime,
	}

	// Columns follow the Go field names of listing.Listing so the registry
	// cannot drift from the schema.
	t := reflect.TypeOf(listing.Listing{})
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := strings.Split(sf.Tag.Get("json"), ",")[0]
		kind, ok := kinds[name]
		if !ok {
			continue
		}
		fieldIndex[name] = Field{
			Name:   name,
			Column: toSnake(sf.Name),
			Kind:   kind,
			Fold:   name == "listingType",
		}
	}
}

// Lookup returns the attribute registered under name.
func Lookup(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

// ColumnFor returns the SQL column for a public attribute name, or "" when
// the attribute is unknown.
func ColumnFor(name string) string {
	return fieldIndex[name].Column
}
