package query

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Match is a text or categorical predicate on a single attribute.
type Match struct {
	Field  string
	Column string
	Value  string
}

// Range is an inclusive numeric range. Either bound may be nil.
type Range struct {
	Field  string
	Column string
	Min    *float64
	Max    *float64
}

// Equal is a numeric equality predicate.
type Equal struct {
	Field  string
	Column string
	Value  float64
}

// Sort orders results by one attribute. An empty Field means insertion
// order (createdAt, then id).
type Sort struct {
	Field     string
	Column    string
	Direction Direction
}

// Descriptor is the canonical, validated form of a listing query. Predicate
// slices are sorted by attribute name and text values are folded, so two
// requests selecting the same rows produce identical descriptors.
type Descriptor struct {
	Text     []Match
	Exact    []Match
	Ranges   []Range
	Equals   []Equal
	Verified *bool
	Sort     Sort
	Page     int
	Limit    int
}

// Skip is the number of rows before the requested page.
func (d Descriptor) Skip() int {
	if d.Page < 1 {
		return 0
	}
	return (d.Page - 1) * d.Limit
}
