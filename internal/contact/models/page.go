package models

import (
	"math"
	"strings"
)

// ListQuery selects one page of contacts. Zero or negative Page and Limit
// mean "use the default".
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// Normalize applies defaults, clamps Limit to maxLimit and trims Search.
func (q ListQuery) Normalize(defaultLimit, maxLimit int) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Offset is the number of matches skipped before this page. Pages too far
// out to address saturate at math.MaxInt rather than wrapping.
func (q ListQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// PageCount is ceil(total/limit), never less than 1.
func PageCount(total, limit int) int {
	if limit < 1 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// ContactPage is the GET list response.
type ContactPage struct {
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Pages    int        `json:"pages"`
	Contacts []*Contact `json:"contacts"`
}

// DeleteResult is the DELETE response.
type DeleteResult struct {
	Message        string   `json:"message"`
	DeletedContact *Contact `json:"deletedContact"`
}

// DeletedMessage is the fixed confirmation text for a delete.
const DeletedMessage = "Contact deleted successfully"
