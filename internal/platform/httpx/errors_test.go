package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.Validation("op", nil, "bad deposit"), http.StatusBadRequest},
		{shared.NotFound("op", nil, "missing"), http.StatusNotFound},
		{shared.Conflict("op", nil, "not active"), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestBindValidatesTags(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required"`
		Count int    `json:"count" validate:"gt=0"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","count":0}`))
	var p payload
	err := Bind(req, &p)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, shared.UserSafeMessage(err), "name failed required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","count":2}`))
	require.NoError(t, Bind(req, &p))
	require.Equal(t, 2, p.Count)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	require.ErrorIs(t, Bind(req, &p), shared.ErrValidation)
}
