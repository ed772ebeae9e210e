package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Page window bounds for appointment listings. Requests outside the bounds
// are rejected rather than clamped, so a client asking for too large a page
// finds out instead of silently getting a truncated schedule.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ParsePagination reads the offset and limit query parameters for a listing
// endpoint. Offset defaults to 0 and must be non-negative; limit defaults to
// DefaultPageSize and must fall within [1, MaxPageSize].
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("invalid offset parameter: must be a non-negative integer")
	}

	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)))
	if err != nil || limit < 1 || limit > MaxPageSize {
		return 0, 0, fmt.Errorf("invalid limit parameter: must be between 1 and %d", MaxPageSize)
	}

	return offset, limit, nil
}
