package shared

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

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

// PaginationFromOffset derives page metadata from a limit/offset window.
func PaginationFromOffset(limit, offset, total int) Pagination {
	if limit <= 0 {
		return NewPagination(1, limit, total)
	}
	if offset < 0 {
		offset = 0
	}
	return NewPagination(offset/limit+1, limit, total)
}

// ParseWindow reads limit and offset from a query string. Missing values are
// zero; anything that is not an integer is an error.
func ParseWindow(q url.Values) (limit, offset int, err error) {
	if limit, err = queryInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(q, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}
