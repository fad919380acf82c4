package shared

import (
	"math"
	"net/url"
	"strconv"
)

// PageQuery is the page/per_page pair parsed from a list request.
type PageQuery struct {
	Page    int
	PerPage int
}

// ParsePageQuery reads the page and per_page query parameters, defaulting
// per_page when absent and clamping it to maxPerPage.
func ParsePageQuery(q url.Values, defaultPerPage, maxPerPage int) PageQuery {
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageQuery{Page: page, PerPage: perPage}
}

// Limit is the SQL LIMIT for this page.
func (p PageQuery) Limit() int { return p.PerPage }

// Offset is the SQL OFFSET for this page.
func (p PageQuery) Offset() int { return (p.Page - 1) * p.PerPage }

// Paginate builds the listing metadata for this page.
func (p PageQuery) Paginate(total int) Pagination {
	return NewPagination(p.Page, p.PerPage, total)
}

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
