package listing

// Pagination describes where a page sits inside the full filtered result.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Page is one window of a filtered listing query.
type Page struct {
	Listings   []Listing  `json:"listings"`
	Pagination Pagination `json:"pagination"`
}

// NewPagination computes the page count as ceil(total/limit).
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// Normalize applies Listing.Normalize to every row and guarantees a non-nil
// slice so empty pages encode as [] rather than null.
func (p *Page) Normalize() {
	if p.Listings == nil {
		p.Listings = []Listing{}
	}
	for i := range p.Listings {
		p.Listings[i].Normalize()
	}
}
