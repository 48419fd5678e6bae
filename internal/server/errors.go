package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	plexdomain "github.com/railzwaylabs/plexsource/internal/plex/domain"
	"github.com/railzwaylabs/plexsource/internal/session"
	sourcedomain "github.com/railzwaylabs/plexsource/internal/source/domain"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

type errorBody struct {
	Type    string              `json:"type"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

// AbortWithError writes the JSON error response for err and aborts the
// chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := mapError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: body})
}

func mapError(err error) (int, errorBody) {
	var verr *sourcedomain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, errorBody{
			Type:    sourcedomain.ErrValidationFailed.Error(),
			Message: "Please correct the errors below.",
			Fields:  verr.Fields,
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, errorBody{Type: m.err.Error(), Message: m.message}
		}
	}
	return http.StatusInternalServerError, errorBody{Type: "internal_error", Message: "Internal server error."}
}

var errorMappings = []struct {
	err     error
	status  int
	message string
}{
	{ErrUnauthorized, http.StatusUnauthorized, "A valid API key is required."},
	{ErrInvalidRequest, http.StatusBadRequest, "The request body is invalid."},
	{session.ErrReadOnlyField, http.StatusBadRequest, "This field cannot be changed for an existing source."},
	{session.ErrSessionNotFound, http.StatusNotFound, "Session not found."},
	{sourcedomain.ErrValidationFailed, http.StatusUnprocessableEntity, "Please correct the errors below."},
	{sourcedomain.ErrNotFound, http.StatusNotFound, "Source not found."},
	{sourcedomain.ErrConflict, http.StatusConflict, "A source with this slug already exists."},
	{session.ErrAuthorizationInProgress, http.StatusConflict, "Authorization with Plex is still in progress."},
	{session.ErrSessionClosed, http.StatusGone, "Session has been closed."},
	{plexdomain.ErrAuthorizationExpired, http.StatusGone, "The Plex pin expired. Start the authorization again."},
	{plexdomain.ErrAuthorizationCancelled, http.StatusGone, "Authorization with Plex was cancelled."},
	{plexdomain.ErrAuthorizationTimedOut, http.StatusGatewayTimeout, "Timed out waiting for Plex approval."},
	{plexdomain.ErrMissingClientID, http.StatusBadRequest, "A client ID is required to authorize with Plex."},
	{plexdomain.ErrProviderUnavailable, http.StatusBadGateway, "Plex is unavailable. Try again."},
	{plexdomain.ErrDiscoveryFailed, http.StatusBadGateway, "Failed to load Plex servers."},
	{flowdomain.ErrReferenceLoadFailed, http.StatusBadGateway, "Failed to load flows."},
	{sourcedomain.ErrPersistenceFailed, http.StatusBadGateway, "Failed to save source."},
}
