package core

import (
	"context"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageRequest describes one page of a listing. Filter is an optional
// case-insensitive substring matched against the entity's searchable columns.
type PageRequest struct {
	Filter   string `json:"filter,omitempty" form:"filter"`
	Page     int    `json:"page"             form:"page"`
	PageSize int    `json:"page_size"        form:"page_size"`
}

// Page is the listing envelope returned to clients.
type Page[T any] struct {
	Data         []T   `json:"data"`
	TotalRecords int64 `json:"total_records"`
	Page         int   `json:"page"`
	PageSize     int   `json:"page_size"`
	TotalPages   int64 `json:"total_pages"`
}

// Reader is the read contract every entity repository provides.
type Reader[T any, ID any] interface {
	GetByID(ctx context.Context, id ID) (*T, error)
	GetPaginated(ctx context.Context, req PageRequest) (*Page[T], error)
}

// Normalize clamps page to >= 1 and page_size to [1, MaxPageSize] and trims
// the filter. A blank filter is treated as absent.
func (r PageRequest) Normalize() PageRequest {
	page, size := ClampPage(r.Page, r.PageSize)
	return PageRequest{Filter: strings.TrimSpace(r.Filter), Page: page, PageSize: size}
}

// Offset returns the row offset of the normalized request.
func (r PageRequest) Offset() uint64 {
	n := r.Normalize()
	return uint64(n.Page-1) * uint64(n.PageSize)
}

// HasFilter reports whether the request carries a non-blank filter.
func (r PageRequest) HasFilter() bool {
	return strings.TrimSpace(r.Filter) != ""
}

func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// TotalPages is ceil(total/pageSize), never less than 1.
func TotalPages(total int64, pageSize int) int64 {
	if pageSize < 1 {
		pageSize = 1
	}
	if total <= 0 {
		return 1
	}
	size := int64(pageSize)
	return (total + size - 1) / size
}

// NewPage builds a page envelope. Data is never nil so it encodes as [].
func NewPage[T any](data []T, total int64, req PageRequest) *Page[T] {
	n := req.Normalize()
	if data == nil {
		data = []T{}
	}
	return &Page[T]{
		Data:         data,
		TotalRecords: total,
		Page:         n.Page,
		PageSize:     n.PageSize,
		TotalPages:   TotalPages(total, n.PageSize),
	}
}
