// Package query turns untrusted request parameters into a canonical listing
// query Descriptor.
//
// Parameters that are not recognised are ignored. Malformed numeric filters
// are always rejected. How the builder treats other malformed input (an
// unknown sort field, a bad page number, an unparseable isVerified flag)
// depends on Options.Strict: lenient builders fall back to defaults, strict
// builders return a validation error naming every offending parameter.
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-listings/listing"
)

// Defaults applied when a request omits pagination.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds raw request parameters, one value per name.
type Params map[string]string

// ParamsFromValues keeps the first value of every query string parameter.
func ParamsFromValues(values url.Values) Params {
	params := make(Params, len(values))
	for name, vs := range values {
		if len(vs) > 0 {
			params[name] = vs[0]
		}
	}
	return params
}

// get returns the trimmed value of name. Empty values count as absent.
func (p Params) get(name string) (string, bool) {
	v := strings.TrimSpace(p[name])
	return v, v != ""
}

// Options configures a Builder.
type Options struct {
	Strict       bool
	DefaultLimit int
	MaxLimit     int
}

// DefaultOptions returns lenient options with the standard page sizes.
func DefaultOptions() Options {
	return Options{DefaultLimit: DefaultLimit, MaxLimit: MaxLimit}
}

var (
	textParams  = []string{"title", "type", "state", "city", "amenities", "listedBy", "tags"}
	exactParams = []string{"furnished", "availableFrom", "colorTheme", "listingType"}
	equalParams = []string{"bedrooms", "bathrooms"}
	rangeParams = []struct{ min, max, field string }{
		{"minPrice", "maxPrice", "price"},
		{"minAreaSqFt", "maxAreaSqFt", "areaSqFt"},
		{"minBedrooms", "maxBedrooms", "bedrooms"},
		{"minBathrooms", "maxBathrooms", "bathrooms"},
		{"minRating", "maxRating", "rating"},
	}
	paramAliases = map[string]string{"colorTherm": "colorTheme"}
)

// Builder validates and canonicalises listing query parameters.
type Builder struct {
	opts Options
}

// NewBuilder returns a Builder. Zero page sizes fall back to the defaults.
func NewBuilder(opts Options) *Builder {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	return &Builder{opts: opts}
}

// Options returns the effective builder options.
func (b *Builder) Options() Options {
	return b.opts
}

// Build produces the Descriptor for params.
func (b *Builder) Build(params Params) (Descriptor, error) {
	params = resolveAliases(params)

	var (
		d       Descriptor
		invalid []string
	)
	reject := func(name string) { invalid = append(invalid, name) }
	rejectStrict := func(name string) {
		if b.opts.Strict {
			reject(name)
		}
	}

	for _, name := range textParams {
		if v, ok := params.get(name); ok {
			f, _ := Lookup(name)
			d.Text = append(d.Text, Match{Field: f.Name, Column: f.Column, Value: strings.ToLower(v)})
		}
	}

	for _, name := range exactParams {
		if v, ok := params.get(name); ok {
			f, _ := Lookup(name)
			if f.Fold {
				v = strings.ToLower(v)
			}
			d.Exact = append(d.Exact, Match{Field: f.Name, Column: f.Column, Value: v})
		}
	}

	for _, name := range equalParams {
		v, ok := params.get(name)
		if !ok {
			continue
		}
		n, err := parseNumber(v)
		if err != nil {
			reject(name)
			continue
		}
		f, _ := Lookup(name)
		d.Equals = append(d.Equals, Equal{Field: f.Name, Column: f.Column, Value: n})
	}

	for _, rp := range rangeParams {
		r, present, bad := parseRange(params, rp.min, rp.max)
		invalid = append(invalid, bad...)
		if !present || len(bad) > 0 {
			continue
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			rejectStrict(rp.min)
		}
		f, _ := Lookup(rp.field)
		r.Field, r.Column = f.Name, f.Column
		d.Ranges = append(d.Ranges, r)
	}

	if v, ok := params.get("isVerified"); ok {
		if flag, err := strconv.ParseBool(v); err == nil {
			d.Verified = &flag
		} else {
			rejectStrict("isVerified")
		}
	}

	d.Sort = b.parseSort(params, rejectStrict)
	d.Page = b.parsePage(params, rejectStrict)
	d.Limit = b.parseLimit(params, rejectStrict)

	if len(invalid) > 0 {
		return Descriptor{}, listing.NewValidationError("invalid query parameter: "+strings.Join(invalid, ", "), invalid...)
	}

	sortMatches(d.Text)
	sortMatches(d.Exact)
	sort.Slice(d.Ranges, func(i, j int) bool { return d.Ranges[i].Field < d.Ranges[j].Field })
	sort.Slice(d.Equals, func(i, j int) bool { return d.Equals[i].Field < d.Equals[j].Field })

	return d, nil
}

func (b *Builder) parseSort(params Params, rejectStrict func(string)) Sort {
	direction := Asc
	if v, ok := params.get("sortOrder"); ok {
		switch strings.ToLower(v) {
		case "asc":
		case "desc":
			direction = Desc
		default:
			rejectStrict("sortOrder")
		}
	}

	name, ok := params.get("sortBy")
	if !ok {
		return Sort{}
	}
	f, known := Lookup(name)
	if !known {
		rejectStrict("sortBy")
		return Sort{}
	}
	return Sort{Field: f.Name, Column: f.Column, Direction: direction}
}

func (b *Builder) parsePage(params Params, rejectStrict func(string)) int {
	v, ok := params.get("page")
	if !ok {
		return DefaultPage
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		rejectStrict("page")
		return DefaultPage
	}
	return page
}

func (b *Builder) parseLimit(params Params, rejectStrict func(string)) int {
	v, ok := params.get("limit")
	if !ok {
		return b.opts.DefaultLimit
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 {
		rejectStrict("limit")
		return b.opts.DefaultLimit
	}
	if limit > b.opts.MaxLimit {
		rejectStrict("limit")
		return b.opts.MaxLimit
	}
	return limit
}

func parseRange(params Params, minName, maxName string) (r Range, present bool, invalid []string) {
	if v, ok := params.get(minName); ok {
		present = true
		if n, err := parseNumber(v); err == nil {
			r.Min = &n
		} else {
			invalid = append(invalid, minName)
		}
	}
	if v, ok := params.get(maxName); ok {
		present = true
		if n, err := parseNumber(v); err == nil {
			r.Max = &n
		} else {
			invalid = append(invalid, maxName)
		}
	}
	return r, present, invalid
}

func parseNumber(v string) (float64, error) {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func resolveAliases(params Params) Params {
	needs := false
	for alias := range paramAliases {
		if _, ok := params[alias]; ok {
			needs = true
			break
		}
	}
	if !needs {
		return params
	}

	resolved := make(Params, len(params))
	for k, v := range params {
		resolved[k] = v
	}
	for alias, canonical := range paramAliases {
		v, ok := resolved.get(alias)
		delete(resolved, alias)
		if _, set := resolved.get(canonical); ok && !set {
			resolved[canonical] = v
		}
	}
	return resolved
}

func sortMatches(ms []Match) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Field < ms[j].Field })
}
