package shared_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/api/shared"
)

func TestTraceID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, shared.GetTraceID(context.Background()))

	ctx := shared.SetTraceID(context.Background())
	traceID := shared.GetTraceID(ctx)
	assert.Len(t, traceID, 32)

	other := shared.GetTraceID(shared.SetTraceID(context.Background()))
	assert.NotEqual(t, traceID, other)
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req = req.WithContext(shared.SetTraceID(req.Context()))
	rec := httptest.NewRecorder()

	shared.RespondWithError(rec, req, http.StatusNotFound, "Job not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Job not found", resp.Error)
	assert.Equal(t, shared.GetTraceID(req.Context()), resp.TraceID)
}

func TestRespondWithErrorAndLogHidesDetails(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()

	shared.RespondWithErrorAndLog(rec, req, http.StatusInternalServerError,
		"An unexpected error occurred",
		assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `validate:"required"`
	}

	assert.Error(t, shared.ValidateRequest(payload{}))
	assert.NoError(t, shared.ValidateRequest(payload{Name: "x"}))
}
