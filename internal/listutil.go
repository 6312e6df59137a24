package internal

import (
	"net/http"
	"strconv"
	"strings"
)

// listParams holds common query parameters for list endpoints
type listParams struct {
	limit  int
	offset int
}

// parseListParams parses limit and offset from the request.
// Defaults: limit=50 (max 200), offset=0
func parseListParams(r *http.Request) listParams {
	values := r.URL.Query()

	limit := 50
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > 200 {
				v = 200
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	return listParams{
		limit:  limit,
		offset: offset,
	}
}

// paginate returns the window of items selected by p
func paginate[T any](items []T, p listParams) []T {
	if p.offset >= len(items) {
		return []T{}
	}
	end := p.offset + p.limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.offset:end]
}

// pageInfo is the pagination block of a list response
type pageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// listResponse is the envelope of every list endpoint
type listResponse[T any] struct {
	Data []T      `json:"data"`
	Page pageInfo `json:"page"`
}

// sendListResponse writes one page of items
func sendListResponse[T any](w http.ResponseWriter, items []T, p listParams) {
	writeJSON(w, http.StatusOK, listResponse[T]{
		Data: paginate(items, p),
		Page: pageInfo{Limit: p.limit, Offset: p.offset, Total: len(items)},
	})
}
