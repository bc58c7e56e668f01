package middleware

import (
	"net/http"
	"strings"

	"github.com/SscSPs/pfm_backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// pathPrefixesToSkip are never tracked.
var pathPrefixesToSkip = []string{"/health", "/swagger"}

var methodVerbs = map[string]string{
	http.MethodGet:    "viewed",
	http.MethodPost:   "created",
	http.MethodPut:    "updated",
	http.MethodPatch:  "updated",
	http.MethodDelete: "deleted",
}

// PosthogMiddleware tracks successful authenticated API calls as PostHog events.
func PosthogMiddleware(posthogClient *utils.PosthogClientWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !posthogClient.IsInitialized() || skipTracking(c.Request.URL.Path) {
			c.Next()
			return
		}

		c.Next()

		if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
			return
		}

		userID, exists := GetUserIDFromContext(c)
		if !exists {
			return
		}

		name := eventName(c.Request.Method, c.FullPath())
		if name == "" {
			return
		}

		props := map[string]any{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status_code": c.Writer.Status(),
		}
		if requestID := c.Writer.Header().Get("X-Request-ID"); requestID != "" {
			props["request_id"] = requestID
		}
		posthogClient.Enqueue(userID, name, props)
	}
}

func skipTracking(path string) bool {
	for _, prefix := range pathPrefixesToSkip {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// eventName turns "POST /api/v1/accounts/:accountID/reconcile" into "accounts_reconcile_created".
// Path parameters and the version prefix are dropped so one route maps to one event.
func eventName(method, fullPath string) string {
	if fullPath == "" {
		return ""
	}
	var parts []string
	for _, seg := range strings.Split(fullPath, "/") {
		if seg == "" || seg == "api" || seg == "v1" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return ""
	}
	verb, ok := methodVerbs[method]
	if !ok {
		verb = strings.ToLower(method)
	}
	return strings.Join(parts, "_") + "_" + verb
}
