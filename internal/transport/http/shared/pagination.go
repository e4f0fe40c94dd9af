package shared

import (
	"net/http"
	"strconv"

	"hrpay/internal/transport/http/api"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit with either offset or a 1-based page. Invalid
// values fall back to the defaults and limit is capped at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	query := r.URL.Query()
	limit := positiveInt(query.Get("limit"), defaultLimit)
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if raw := query.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	} else if page := positiveInt(query.Get("page"), 1); page > 1 {
		offset = (page - 1) * limit
	}
	return Pagination{Limit: limit, Offset: offset}
}

func (p Pagination) Meta(total int) api.Meta {
	return api.Meta{Total: total, Limit: p.Limit, Offset: p.Offset}
}

func positiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
