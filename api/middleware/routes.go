package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	lookupPrefix = "/postLookup"
	healthPrefix = "/health"
)

// route is the matched route template, or "" for unmatched requests.
func route(c *gin.Context) string {
	return c.FullPath()
}

// lookupName names the lookup behind a route template: "all", "byId",
// "byAuthor", "withComments" or "withLikes". ok is false for other routes.
func lookupName(fullPath string) (name string, ok bool) {
	i := strings.Index(fullPath, lookupPrefix)
	if i < 0 {
		return "", false
	}
	rest := strings.Trim(fullPath[i+len(lookupPrefix):], "/")
	if rest == "" {
		return "all", true
	}
	name, _, _ = strings.Cut(rest, "/")
	return name, true
}

func isHealthCheck(fullPath string) bool {
	return strings.Contains(fullPath, healthPrefix)
}
