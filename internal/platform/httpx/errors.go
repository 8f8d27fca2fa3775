package httpx

import (
	"errors"
	"net/http"

	"github.com/tripdesk/tripdesk/internal/shared"
)

// RespondError maps domain errors onto HTTP responses. Validation failures
// carry their field and any offending values; sentinel errors map to their
// status with a user-safe detail; everything else is an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var ve *shared.ValidationError
	switch {
	case errors.As(err, &ve):
		payload := map[string]any{"detail": ve.Message, "field": ve.Field}
		if len(ve.Missing) > 0 {
			payload["missing"] = ve.Missing
		}
		JSON(w, http.StatusBadRequest, payload)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
