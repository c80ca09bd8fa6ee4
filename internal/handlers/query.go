package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseOptionalID reads a positive integer query parameter. A missing or blank value yields nil.
func ParseOptionalID(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, strconv.ErrRange
	}
	return &id, nil
}

// ParseLimit parses the limit query param. Missing, invalid or non-positive values fall back
// to defaultLimit and anything above maxLimit is capped.
func ParseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// ParseBool reports whether key is set to a true value ("true", "1", ...).
func ParseBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && v
}

// ParsePathID parses a positive integer path parameter
func ParsePathID(c *gin.Context, key string) (int, error) {
	id, err := strconv.Atoi(c.Param(key))
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
