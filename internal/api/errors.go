package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"campuscreatives/internal/models"
)

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(path string, status int, body []byte) error {
	detail := serverDetail(body)

	var appErr *models.AppError
	switch {
	case status == http.StatusBadRequest:
		if detail == "" {
			detail = "Invalid request"
		}
		if path == TokenPath {
			appErr = models.NewUnauthenticatedError(detail)
		} else {
			appErr = models.NewValidationError(detail)
		}
	case status == http.StatusUnauthorized:
		if isAuthPath(path) {
			if detail == "" {
				detail = "Invalid username or password"
			}
			appErr = models.NewUnauthenticatedError(detail)
		} else {
			appErr = models.NewSessionExpiredError(nil)
		}
	case status == http.StatusForbidden:
		if detail == "" {
			detail = "You do not have permission to perform this action"
		}
		appErr = models.NewAuthorizationError(detail)
	case status == http.StatusNotFound:
		if detail == "" {
			detail = "Not found"
		}
		appErr = models.NewNotFoundMessage(detail)
	case status >= 500:
		appErr = models.NewNetworkError(fmt.Errorf("server returned %d", status))
	default:
		if detail == "" {
			detail = http.StatusText(status)
		}
		appErr = models.NewValidationError(detail)
	}
	appErr.Status = status
	return appErr
}

// serverDetail extracts the message of an error body. Django REST Framework
// also reports field errors as {"field": ["msg"]}, which are flattened.
func serverDetail(body []byte) string {
	var resp models.ErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message() != "" {
		return resp.Message()
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	var parts []string
	for name, raw := range fields {
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
			parts = append(parts, name+": "+strings.Join(msgs, " "))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
