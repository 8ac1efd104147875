package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestHandleReload(t *testing.T) {
	handler := HandleReload(func() ([]string, error) {
		return []string{"petstore", "billing"}, nil
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, []string{"petstore", "billing"}, resp.ReloadedAPIs)

	// Only POST is accepted.
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/reload", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleReloadFailure(t *testing.T) {
	handler := HandleReload(func() ([]string, error) {
		return nil, NewError(ErrorTypeDatabase, "connection lost", "")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ReloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, "connection lost")
}

func TestHandleTools(t *testing.T) {
	handler := HandleTools("petstore", func(endpoint string) (any, bool) {
		if endpoint != "petstore" {
			return nil, false
		}
		return []map[string]any{{"name": "getUser"}}, true
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/petstore/tools", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body["tools"], 1)
}

func TestHandleToolsUnknownEndpoint(t *testing.T) {
	handler := HandleTools("ghost", func(endpoint string) (any, bool) { return nil, false })

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/ghost/tools", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	require.Equal(t, string(ErrorTypeNotFound), errObj["type"])
}

func TestHandleRun(t *testing.T) {
	handler := HandleRun("petstore", func(ctx context.Context, endpoint, toolName string, args map[string]any) (any, error) {
		require.Equal(t, "petstore", endpoint)
		require.Equal(t, "getUser", toolName)
		require.EqualValues(t, 42, args["userId"])
		return map[string]any{"status_code": 200}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/petstore/run",
		strings.NewReader(`{"name": "getUser", "parameters": {"userId": 42}}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleRunBadRequests(t *testing.T) {
	handler := HandleRun("petstore", func(ctx context.Context, endpoint, toolName string, args map[string]any) (any, error) {
		t.Fatal("executor must not be called")
		return nil, nil
	})

	// Malformed JSON.
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/petstore/run", strings.NewReader(`{not json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing tool name.
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/petstore/run", strings.NewReader(`{"parameters": {}}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong method.
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/petstore/run", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRunErrorEnvelope(t *testing.T) {
	handler := HandleRun("petstore", func(ctx context.Context, endpoint, toolName string, args map[string]any) (any, error) {
		return nil, NewError(ErrorTypeToolNotFound, "no such tool", toolName)
	})

	req := httptest.NewRequest(http.MethodPost, "/petstore/run", strings.NewReader(`{"name": "ghost"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	require.Equal(t, string(ErrorTypeToolNotFound), errObj["type"])
	require.Equal(t, "ghost", errObj["details"])
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[ErrorType]int{
		ErrorTypeToolNotFound:     http.StatusNotFound,
		ErrorTypeNotFound:         http.StatusNotFound,
		ErrorTypeMissingParameter: http.StatusBadRequest,
		ErrorTypeValidation:       http.StatusBadRequest,
		ErrorTypeSchemaResolution: http.StatusBadRequest,
		ErrorTypeAuth:             http.StatusBadGateway,
		ErrorTypeNetwork:          http.StatusBadGateway,
		ErrorTypeDatabase:         http.StatusInternalServerError,
		ErrorTypeInternal:         http.StatusInternalServerError,
	}
	for errType, want := range cases {
		require.Equal(t, want, HTTPStatus(errType), string(errType))
	}
}

func TestServerErrorTypeHelpers(t *testing.T) {
	err := NewError(ErrorTypeValidation, "bad input", "limit")
	require.True(t, IsType(err, ErrorTypeValidation))
	require.False(t, IsType(err, ErrorTypeNetwork))
	require.Equal(t, ErrorTypeValidation, GetType(err))
	require.Contains(t, err.Error(), "bad input")
	require.Contains(t, err.Error(), "limit")

	wrapped := Wrap(nil, ErrorTypeInternal, "ignored")
	require.Nil(t, wrapped)
}
