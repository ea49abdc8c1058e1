package api

// DefaultPageLimit is the page size used when no limit is configured.
const DefaultPageLimit = 20

// Paginator is the pagination metadata of a list response.
type Paginator struct {
	Count    int `json:"count" yaml:"count"`
	Skip     int `json:"skip" yaml:"skip"`
	Limit    int `json:"limit" yaml:"limit"`
	PageSize int `json:"page_size" yaml:"page_size"`
	Page     int `json:"page" yaml:"page"`
}

// NewPaginator returns the paginator of an empty first page.
func NewPaginator(limit int) Paginator {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return Paginator{Page: 1, PageSize: limit, Limit: limit}
}

// HasMore reports whether records exist past the current page.
func (p Paginator) HasMore() bool {
	return p.Skip+p.PageSize < p.Count
}

// NextSkip returns the skip value of the next page.
func (p Paginator) NextSkip() int {
	return p.Skip + p.Limit
}

// ListResponse is the envelope of list endpoints.
type ListResponse[T any] struct {
	Meta  Paginator `json:"meta"`
	Items []T       `json:"items"`
}
