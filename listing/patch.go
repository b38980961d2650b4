package listing

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RequiredOnCreate lists the attributes a create request must carry.
var RequiredOnCreate = []string{"title", "type", "price", "state", "city", "areaSqFt", "bedrooms", "bathrooms"}

// Patch is the typed subset of listing attributes present in a create or
// update request. A nil field means the attribute was not supplied.
type Patch struct {
	Title         *string
	Category      *string
	Price         *float64
	Region        *string
	City          *string
	AreaSqFt      *float64
	Bedrooms      *int
	Bathrooms     *int
	Amenities     *string
	Furnished     *string
	AvailableFrom *string
	ListedBy      *string
	Tags          *string
	ColorTheme    *string
	Rating        *float64
	IsVerified    *bool
	ListingType   *string
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindInteger
	kindBool
)

type patchField struct {
	name string
	kind fieldKind
	set  func(p *Patch, v any)
}

// patchFields maps request attribute names to Patch setters. Server-owned
// attributes (id, createdBy, createdAt, updatedAt) are absent.
var patchFields = []patchField{
	{"title", kindText, func(p *Patch, v any) { s := v.(string); p.Title = &s }},
	{"type", kindText, func(p *Patch, v any) { s := v.(string); p.Category = &s }},
	{"price", kindNumber, func(p *Patch, v any) { f := v.(float64); p.Price = &f }},
	{"state", kindText, func(p *Patch, v any) { s := v.(string); p.Region = &s }},
	{"city", kindText, func(p *Patch, v any) { s := v.(string); p.City = &s }},
	{"areaSqFt", kindNumber, func(p *Patch, v any) { f := v.(float64); p.AreaSqFt = &f }},
	{"bedrooms", kindInteger, func(p *Patch, v any) { i := v.(int); p.Bedrooms = &i }},
	{"bathrooms", kindInteger, func(p *Patch, v any) { i := v.(int); p.Bathrooms = &i }},
	{"amenities", kindText, func(p *Patch, v any) { s := v.(string); p.Amenities = &s }},
	{"furnished", kindText, func(p *Patch, v any) { s := v.(string); p.Furnished = &s }},
	{"availableFrom", kindText, func(p *Patch, v any) { s := v.(string); p.AvailableFrom = &s }},
	{"listedBy", kindText, func(p *Patch, v any) { s := v.(string); p.ListedBy = &s }},
	{"tags", kindText, func(p *Patch, v any) { s := v.(string); p.Tags = &s }},
	{"colorTheme", kindText, func(p *Patch, v any) { s := v.(string); p.ColorTheme = &s }},
	{"rating", kindNumber, func(p *Patch, v any) { f := v.(float64); p.Rating = &f }},
	{"isVerified", kindBool, func(p *Patch, v any) { b := v.(bool); p.IsVerified = &b }},
	{"listingType", kindText, func(p *Patch, v any) {
		s := strings.ToLower(v.(string))
		p.ListingType = &s
	}},
}

// ParsePatch converts an untrusted attribute map, typically decoded JSON,
// into a Patch. Numbers may arrive as JSON numbers or numeric strings.
// Unknown keys are ignored. Every malformed attribute is reported in a
// single validation error.
func ParsePatch(raw map[string]any) (Patch, error) {
	var p Patch
	var invalid []string

	for _, f := range patchFields {
		v, ok := raw[f.name]
		if !ok || v == nil {
			continue
		}

		var (
			parsed any
			valid  bool
		)
		switch f.kind {
		case kindText:
			parsed, valid = asText(v)
		case kindNumber:
			parsed, valid = asNumber(v)
		case kindInteger:
			parsed, valid = asInteger(v)
		case kindBool:
			parsed, valid = asBool(v)
		}
		if !valid {
			invalid = append(invalid, f.name)
			continue
		}
		f.set(&p, parsed)
	}

	if len(invalid) > 0 {
		return Patch{}, NewValidationError("invalid value for "+strings.Join(invalid, ", "), invalid...)
	}
	return p, nil
}

// MissingRequired returns the create-time attributes absent from p.
func (p Patch) MissingRequired() []string {
	present := map[string]bool{
		"title":     p.Title != nil && *p.Title != "",
		"type":      p.Category != nil && *p.Category != "",
		"price":     p.Price != nil,
		"state":     p.Region != nil && *p.Region != "",
		"city":      p.City != nil && *p.City != "",
		"areaSqFt":  p.AreaSqFt != nil,
		"bedrooms":  p.Bedrooms != nil,
		"bathrooms": p.Bathrooms != nil,
	}
	var missing []string
	for _, name := range RequiredOnCreate {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// Empty reports whether the patch carries no attribute at all.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply copies every supplied attribute onto l.
func (p Patch) Apply(l *Listing) {
	setString(&l.Title, p.Title)
	setString(&l.Category, p.Category)
	setString(&l.Region, p.Region)
	setString(&l.City, p.City)
	setString(&l.Amenities, p.Amenities)
	setString(&l.Furnished, p.Furnished)
	setString(&l.AvailableFrom, p.AvailableFrom)
	setString(&l.ListedBy, p.ListedBy)
	setString(&l.Tags, p.Tags)
	setString(&l.ColorTheme, p.ColorTheme)
	setString(&l.ListingType, p.ListingType)
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.AreaSqFt != nil {
		l.AreaSqFt = *p.AreaSqFt
	}
	if p.Rating != nil {
		l.Rating = *p.Rating
	}
	if p.Bedrooms != nil {
		l.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		l.Bathrooms = *p.Bathrooms
	}
	if p.IsVerified != nil {
		l.IsVerified = *p.IsVerified
	}
}

// Validate checks the attribute invariants of a listing about to be persisted.
func Validate(l Listing) error {
	err := validation.ValidateStruct(&l,
		validation.Field(&l.Title, validation.Required),
		validation.Field(&l.Category, validation.Required),
		validation.Field(&l.Region, validation.Required),
		validation.Field(&l.City, validation.Required),
		validation.Field(&l.Price, validation.Min(0.0)),
		validation.Field(&l.AreaSqFt, validation.Min(0.0)),
		validation.Field(&l.Rating, validation.Min(0.0)),
		validation.Field(&l.Bedrooms, validation.Min(0)),
		validation.Field(&l.Bathrooms, validation.Min(0)),
		validation.Field(&l.ListingType, validation.In(TypeRent, TypeSale)),
		validation.Field(&l.CreatedBy, validation.Required),
	)
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !asValidationErrors(err, &verrs) {
		return WrapDependency(err, "listing validation failed")
	}

	fields := make([]string, 0, len(verrs))
	for name := range verrs {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return NewValidationError(verrs.Error(), fields...)
}

func asValidationErrors(err error, target *validation.Errors) bool {
	verrs, ok := err.(validation.Errors)
	if ok {
		*target = verrs
	}
	return ok
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func asText(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asInteger(v any) (int, bool) {
	f, ok := asNumber(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}
