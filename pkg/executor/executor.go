// Package executor turns a registered tool plus a runtime parameter set into
// an outbound HTTP request, and normalizes the response.
//
// Each execution is independent: validation, binding and response parsing are
// synchronous, the HTTP call carries its own bounded timeout, and the only
// state shared between executions is the credential manager's cached token.
// Upstream 4xx/5xx responses are results, not errors; only transport-level
// failures and this system's own validation surface as typed errors.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/yosida95/uritemplate/v3"

	"github.com/toolwire/openapi-mcp/pkg/auth"
	"github.com/toolwire/openapi-mcp/pkg/server"
	"github.com/toolwire/openapi-mcp/pkg/tool"
)

// DefaultTimeout bounds a single tool execution's HTTP call.
const DefaultTimeout = 30 * time.Second

// Result is the normalized outcome of a dispatched tool call. Body holds the
// decoded JSON value when the response declared a JSON content type, the raw
// text otherwise.
type Result struct {
	ExecutionID string            `json:"execution_id"`
	StatusCode  int               `json:"status_code"`
	Headers     map[string]string `json:"headers"`
	Body        any               `json:"body"`
}

// Options configures an Executor.
type Options struct {
	// BaseURL is the target API's server base, e.g. https://api.example.com.
	BaseURL string

	// Timeout bounds each execution's HTTP call. Zero means DefaultTimeout.
	Timeout time.Duration

	// HTTPClient issues the outbound calls. Nil means http.DefaultClient;
	// the client is assumed safe for concurrent reuse.
	HTTPClient *http.Client
}

// Executor dispatches tool executions against one target API.
type Executor struct {
	registry *tool.Registry
	creds    *auth.TokenManager
	client   *http.Client
	baseURL  string
	timeout  time.Duration
}

// New creates an executor over a registry and credential manager.
func New(registry *tool.Registry, creds *auth.TokenManager, opts Options) *Executor {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if creds == nil {
		creds = auth.NewTokenManager(nil, client)
	}

	return &Executor{
		registry: registry,
		creds:    creds,
		client:   client,
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		timeout:  timeout,
	}
}

// Execute runs the named tool with the supplied parameters and returns the
// normalized response, or a typed error for failures of this system itself.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	t, ok := e.registry.Get(name)
	if !ok {
		return nil, server.NewError(server.ErrorTypeToolNotFound, "no such tool", name)
	}
	if err := tool.CheckBindings(t); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}
	args = tool.ApplyDefaults(t, args)
	if err := tool.ValidateArguments(t, args); err != nil {
		return nil, err
	}

	req, err := e.buildRequest(ctx, t, args)
	if err != nil {
		return nil, err
	}

	execID := uuid.NewString()
	return e.dispatch(ctx, req, execID)
}

// buildRequest partitions the arguments by binding and assembles the HTTP
// request: path substitutions, query string, headers, cookies and JSON body.
func (e *Executor) buildRequest(ctx context.Context, t tool.Tool, args map[string]any) (*http.Request, error) {
	pathVars := uritemplate.Values{}
	query := url.Values{}
	paramHeaders := http.Header{}
	var cookies []*http.Cookie
	body := map[string]any{}

	for name, binding := range t.Bindings {
		value, supplied := args[name]
		if !supplied {
			continue
		}

		switch binding {
		case tool.BindPath:
			s, err := cast.ToStringE(value)
			if err != nil {
				return nil, server.NewError(server.ErrorTypeValidation,
					fmt.Sprintf("path parameter %q is not a scalar", name), fmt.Sprintf("%v", value))
			}
			pathVars[name] = uritemplate.String(s)
		case tool.BindQuery:
			if err := addQueryValue(query, name, value); err != nil {
				return nil, err
			}
		case tool.BindHeader:
			paramHeaders.Set(name, cast.ToString(value))
		case tool.BindCookie:
			cookies = append(cookies, &http.Cookie{Name: name, Value: cast.ToString(value)})
		case tool.BindBody:
			body[name] = value
		default:
			return nil, server.NewError(server.ErrorTypeInternal,
				"unknown binding location for property", name)
		}
	}

	tmpl, err := uritemplate.New(t.Path)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeInternal, "invalid path template")
	}
	// Any placeholder without a value would survive substitution; treat it as
	// a missing parameter even when the spec forgot to declare it.
	for _, varname := range tmpl.Varnames() {
		if _, ok := pathVars[varname]; !ok {
			return nil, server.NewError(server.ErrorTypeMissingParameter,
				"missing required parameter", varname)
		}
	}
	path, err := tmpl.Expand(pathVars)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeMissingParameter, "path expansion failed")
	}

	target, err := url.Parse(e.baseURL + path)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeValidation, "invalid request URL")
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	sendBody := len(body) > 0 || t.BodyRequired
	if sendBody {
		if t.BodyContentType != "" && t.BodyContentType != "application/json" {
			return nil, server.NewError(server.ErrorTypeValidation,
				"request body media type is not supported", t.BodyContentType)
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, server.Wrap(err, server.ErrorTypeValidation, "failed to encode request body")
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, t.Method, target.String(), bodyReader)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeInternal, "failed to build request")
	}

	// Auth goes on first so explicit header parameters win when they target
	// the same header name.
	if authCtx, ok := auth.FromContext(ctx); ok && authCtx.Authorization != "" {
		req.Header.Set("Authorization", authCtx.Authorization)
	} else if err := e.creds.ApplyAuth(ctx, req.Header); err != nil {
		return nil, err
	}
	for name, values := range paramHeaders {
		req.Header[name] = values
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if sendBody {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// dispatch issues the request under the execution timeout and normalizes the
// response. HTTP error statuses are returned as results.
func (e *Executor) dispatch(ctx context.Context, req *http.Request, execID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, server.NewError(server.ErrorTypeNetwork, "request timed out", req.URL.String())
		}
		return nil, server.Wrap(err, server.ErrorTypeNetwork, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeNetwork, "failed to read response body")
	}

	result := &Result{
		ExecutionID: execID,
		StatusCode:  resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		Body:        decodeBody(resp.Header.Get("Content-Type"), raw),
	}

	log.Printf("execution %s: %s %s -> %d", execID, req.Method, req.URL.Path, resp.StatusCode)
	return result, nil
}

// addQueryValue appends a query parameter. Array values repeat the key, one
// entry per element; everything else is a single entry.
func addQueryValue(query url.Values, name string, value any) error {
	if items, ok := value.([]any); ok {
		for _, item := range items {
			s, err := cast.ToStringE(item)
			if err != nil {
				return server.NewError(server.ErrorTypeValidation,
					fmt.Sprintf("query parameter %q has a non-scalar element", name), fmt.Sprintf("%v", item))
			}
			query.Add(name, s)
		}
		return nil
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		return server.NewError(server.ErrorTypeValidation,
			fmt.Sprintf("query parameter %q is not a scalar", name), fmt.Sprintf("%v", value))
	}
	query.Add(name, s)
	return nil
}

// decodeBody parses JSON responses and passes everything else through as
// text. A JSON content type with an unparsable body falls back to raw text
// rather than failing the execution.
func decodeBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			return decoded
		}
	}

	return string(raw)
}

// flattenHeaders keeps the first value of each response header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}
