package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProblem(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProblem(rec, ProblemDetail{
		Status:   http.StatusUnprocessableEntity,
		Detail:   "validation failed",
		Problems: []string{"amount must be greater than zero"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))

	var got ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Unprocessable Entity", got.Title)
	assert.Equal(t, []string{"amount must be greater than zero"}, got.Problems)
}

func TestProblem_DefaultsToInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProblem(rec, ProblemDetail{})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Internal Server Error"`)
}
