package models

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Page struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize clamps the request to page >= 1 and 1 <= per_page <= maxPerPage.
func (p PageRequest) Normalize(maxPerPage int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
