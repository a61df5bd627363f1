// Package pagination parses list limits from query strings.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxLimit caps every list request
const MaxLimit = 100

// ParseLimit reads the limit query parameter. Missing, malformed and
// non-positive values fall back to defaultLimit; larger values are capped at
// MaxLimit.
func ParseLimit(c *gin.Context, defaultLimit int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}
