package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/shared"
)

func TestRespondErrorValidation(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.NewValidationError("slug", "slug must be unique"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "slug must be unique", body["detail"])
	assert.Equal(t, "slug", body["field"])
	assert.NotContains(t, body, "missing")
}

func TestRespondErrorValidationCarriesMissingValues(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, shared.NewValidationError("permissions", "permission codes not found", "aa.nope", "zz.nope"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []any{"aa.nope", "zz.nope"}, body["missing"])
}

func TestRespondErrorSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("lookup role: %w", shared.ErrNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, "error %v", tc.err)
	}
}

func TestRespondErrorUnknownIsOpaque(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}
