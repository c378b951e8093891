package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

type page struct {
	Page   int
	Limit  int
	Offset int
}

// parsePage reads page and limit query parameters, falling back to defaults
func parsePage(c *gin.Context) page {
	p, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))

	if p < 1 {
		p = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return page{Page: p, Limit: limit, Offset: (p - 1) * limit}
}
