package sqlquery

import "github.com/roach88/litebatch/internal/dberr"

// PagingOptions describes one page of results.
//
// The zero value is NoPaging. Any other value has page >= 1 and size >= 1.
type PagingOptions struct {
	page int
	size int
}

// NoPaging is the "no paging" sentinel.
var NoPaging = PagingOptions{}

// ForPage returns paging options for the 1-based page of the given size.
func ForPage(page, size int) (PagingOptions, error) {
	if page < 1 {
		return NoPaging, dberr.Usage("page must be at least 1, got %d", page)
	}
	if size < 1 {
		return NoPaging, dberr.Usage("page size must be at least 1, got %d", size)
	}
	return PagingOptions{page: page, size: size}, nil
}

// MustForPage is ForPage for constant arguments; it panics on invalid input.
func MustForPage(page, size int) PagingOptions {
	p, err := ForPage(page, size)
	if err != nil {
		panic(err)
	}
	return p
}

// IsNone reports whether p is NoPaging.
func (p PagingOptions) IsNone() bool {
	return p == NoPaging
}

// Page returns the 1-based page number.
func (p PagingOptions) Page() int {
	return p.page
}

// Size returns the number of rows per page.
func (p PagingOptions) Size() int {
	return p.size
}

// Offset returns the number of rows skipped before the page: (page-1)*size.
func (p PagingOptions) Offset() int {
	if p.IsNone() {
		return 0
	}
	return (p.page - 1) * p.size
}

// Page is one page of results plus the total row count of the unpaged query.
type Page[T any] struct {
	Page         int   `json:"page"`
	PageSize     int   `json:"page_size"`
	TotalResults int64 `json:"total_results"`
	Items        []T   `json:"items"`
}

// TotalPages returns the number of pages needed for TotalResults.
func (p Page[T]) TotalPages() int64 {
	if p.PageSize < 1 || p.TotalResults < 1 {
		return 0
	}
	size := int64(p.PageSize)
	return (p.TotalResults + size - 1) / size
}

// HasResults reports whether the page holds any items.
func (p Page[T]) HasResults() bool {
	return len(p.Items) > 0
}

// MoreResultsAvailable reports whether a later page exists.
func (p Page[T]) MoreResultsAvailable() bool {
	return int64(p.Page) < p.TotalPages()
}
