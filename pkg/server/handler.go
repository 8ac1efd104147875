package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// ReloadResponse represents the response from a reload operation
type ReloadResponse struct {
	Success      bool     `json:"success"`
	ReloadedAPIs []string `json:"reloaded_apis,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// RunRequest is the body of a tool execution request.
type RunRequest struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ListToolsFunc returns the tool listing for an endpoint; false means the
// endpoint is not mounted.
type ListToolsFunc func(endpoint string) (any, bool)

// ExecuteFunc runs a tool for an endpoint and returns the normalized result.
type ExecuteFunc func(ctx context.Context, endpoint, toolName string, args map[string]any) (any, error)

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// WriteError writes the structured error envelope, mapping the error type to
// an HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	serverErr, ok := err.(*ServerError)
	if !ok {
		serverErr = NewError(ErrorTypeInternal, "internal server error", err.Error())
	}
	serverErr.LogError()
	WriteJSON(w, HTTPStatus(serverErr.Type), map[string]any{"error": serverErr})
}

// HandleReload handles the /reload endpoint for reloading API specifications
func HandleReload(reloadFunc func() ([]string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		reloadedAPIs, err := reloadFunc()

		response := ReloadResponse{
			Success:      err == nil,
			ReloadedAPIs: reloadedAPIs,
		}

		if err != nil {
			response.Error = err.Error()
			log.Printf("Reload failed: %v", err)
			WriteJSON(w, http.StatusInternalServerError, response)
			return
		}

		log.Printf("Successfully reloaded %d APIs: %v", len(reloadedAPIs), reloadedAPIs)
		WriteJSON(w, http.StatusOK, response)
	}
}

// HandleHealth handles the /health endpoint for health checks
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "openapi-mcp",
		})
	}
}

// HandleAPIList handles listing available APIs
func HandleAPIList(listFunc func() ([]map[string]any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apis, err := listFunc()
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, apis)
	}
}

// HandleTools serves GET /{endpoint}/tools: the endpoint's callable tool
// catalog.
func HandleTools(endpoint string, listFunc ListToolsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		tools, ok := listFunc(endpoint)
		if !ok {
			WriteError(w, NewError(ErrorTypeNotFound, "no such endpoint", endpoint))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"tools": tools})
	}
}

// HandleRun serves POST /{endpoint}/run: executes one tool and returns the
// normalized upstream response. Upstream error statuses come back inside the
// result; only failures of this service use the error envelope.
func HandleRun(endpoint string, execFunc ExecuteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
		if err != nil {
			WriteError(w, Wrap(err, ErrorTypeValidation, "failed to read request body"))
			return
		}

		var runReq RunRequest
		if err := json.Unmarshal(body, &runReq); err != nil {
			WriteError(w, Wrap(err, ErrorTypeValidation, "request body is not valid JSON"))
			return
		}
		if runReq.Name == "" {
			WriteError(w, NewError(ErrorTypeValidation, "missing tool name", ""))
			return
		}

		ctx := WithRequestID(r.Context(), uuid.NewString())
		result, err := execFunc(ctx, endpoint, runReq.Name, runReq.Parameters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}
