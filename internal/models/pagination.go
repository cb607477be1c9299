package models

type PaginationParams struct {
	Page  int
	Limit int
}

// LimitOffset normalizes the params into SQL LIMIT/OFFSET values.
func (p PaginationParams) LimitOffset() (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

type PaginatedList[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

func NewPaginatedList[T any](items []T, totalCount int, p PaginationParams) PaginatedList[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (totalCount + p.Limit - 1) / p.Limit
	}
	return PaginatedList[T]{
		Items:      items,
		TotalCount: totalCount,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: totalPages,
	}
}
