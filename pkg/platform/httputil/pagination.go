package httputil

import (
	"net/http"
	"strconv"

	dErrors "gatehouse/pkg/domain-errors"
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// TotalPages is ceil(total / limit).
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// ParsePage reads ?page= and ?limit=. Missing values take the defaults;
// page < 1 or limit outside 1..maxLimit is a bad request.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) (Page, error) {
	page := Page{Number: 1, Limit: defaultLimit}
	query := r.URL.Query()

	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid pagination parameters")
		}
		page.Number = n
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return Page{}, dErrors.New(dErrors.CodeBadRequest, "invalid pagination parameters")
		}
		page.Limit = n
	}
	return page, nil
}
