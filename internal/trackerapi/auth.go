package trackerapi

import (
	"net/http"
	"strings"

	"github.com/attract-vse/attract/internal/attractapi"
)

type authError struct {
	status  int
	message string
}

func (e *authError) Error() string {
	return e.message
}

// authorizeBearer accepts any unexpired token present in the token collection.
func (s *Server) authorizeBearer(authHeader string) (attractapi.Token, *authError) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return attractapi.Token{}, &authError{
			status:  http.StatusUnauthorized,
			message: "missing or invalid bearer token",
		}
	}
	value := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	tok, ok := s.tracker.Authorize(value)
	if !ok {
		return attractapi.Token{}, &authError{
			status:  http.StatusUnauthorized,
			message: "unknown or expired token",
		}
	}
	return tok, nil
}
