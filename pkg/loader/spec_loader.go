// Package loader turns OpenAPI documents from the database, local files or
// URLs into ready-to-serve endpoints: parsed document, resolved operations,
// translated tool registry and a wired executor.
package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/toolwire/openapi-mcp/pkg/auth"
	"github.com/toolwire/openapi-mcp/pkg/executor"
	"github.com/toolwire/openapi-mcp/pkg/memory"
	"github.com/toolwire/openapi-mcp/pkg/models"
	"github.com/toolwire/openapi-mcp/pkg/server"
	"github.com/toolwire/openapi-mcp/pkg/services"
	"github.com/toolwire/openapi-mcp/pkg/spec"
	"github.com/toolwire/openapi-mcp/pkg/tool"
)

// maxSpecSize caps a single spec document read. Anything larger is almost
// certainly not an OpenAPI file.
const maxSpecSize = 16 * 1024 * 1024

// Options configures a SpecLoader.
type Options struct {
	// Timeout applies to each tool execution and to URL spec fetches.
	Timeout time.Duration

	// HTTPClient is shared by token fetches, executions and URL loads.
	// Nil means http.DefaultClient.
	HTTPClient *http.Client

	// MaxMemoryMB bounds heap growth during bulk loads; <= 0 disables.
	MaxMemoryMB int64
}

// SpecLoader handles loading and management of OpenAPI specifications. It is
// safe for concurrent use: loads are serialized, so the polling goroutine and
// an explicit reload never race, and the loaded-spec map is swapped wholesale
// so readers always see a consistent snapshot.
type SpecLoader struct {
	specLoaderService *services.SpecLoaderService
	authStateManager  *auth.StateManager
	buffers           *memory.BufferPool
	limiter           *memory.SpecReadLimiter
	client            *http.Client
	timeout           time.Duration

	// mu serializes loads and guards the two maps below.
	mu              sync.RWMutex
	loadedSpecs     map[string]*LoadedSpec
	requiredEnvVars map[string]string
}

// LoadedSpec is one mounted endpoint: the parsed document plus everything
// needed to list and execute its tools.
type LoadedSpec struct {
	Endpoint string
	Doc      *openapi3.T
	Spec     *models.OpenAPISpec
	Registry *tool.Registry
	Executor *executor.Executor
	LoadedAt time.Time
}

// NewSpecLoader creates a new specification loader. specLoaderService may be
// nil for the file-only mode.
func NewSpecLoader(specLoaderService *services.SpecLoaderService, authStateManager *auth.StateManager, opts Options) *SpecLoader {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if authStateManager == nil {
		authStateManager = auth.NewStateManager()
	}

	return &SpecLoader{
		specLoaderService: specLoaderService,
		authStateManager:  authStateManager,
		loadedSpecs:       make(map[string]*LoadedSpec),
		requiredEnvVars:   make(map[string]string),
		buffers:           memory.NewBufferPool(),
		limiter:           memory.NewSpecReadLimiter(opts.MaxMemoryMB),
		client:            client,
		timeout:           opts.Timeout,
	}
}

// LoadFromDatabase loads all active specifications from the database.
// Individual spec failures are logged and skipped so one broken document
// never takes down the other endpoints.
func (sl *SpecLoader) LoadFromDatabase(ctx context.Context) ([]*LoadedSpec, error) {
	if sl.specLoaderService == nil {
		return nil, server.NewErrorWithContext(ctx, server.ErrorTypeDatabase, "spec loader service not initialized", "")
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	specs, err := sl.specLoaderService.GetActiveSpecs()
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeDatabase, "failed to load specs from database")
	}

	configs := make(map[string]*auth.OAuthConfig, len(specs))
	for _, sp := range specs {
		configs[sp.EndpointPath] = oauthConfigFor(sp.EndpointPath, sp)
	}
	sl.authStateManager.UpdateManagers(configs, sl.client)

	next := make(map[string]*LoadedSpec, len(specs))
	var loadedSpecs []*LoadedSpec
	for _, sp := range specs {
		loadedSpec, err := sl.processSpec(ctx, sp.EndpointPath, []byte(sp.SpecContent), sp)
		if err != nil {
			log.Printf("Failed to process spec for endpoint %s: %v", sp.EndpointPath, err)
			continue
		}

		loadedSpecs = append(loadedSpecs, loadedSpec)
		next[sp.EndpointPath] = loadedSpec
	}
	sl.loadedSpecs = next

	return loadedSpecs, nil
}

// LoadFromFiles loads specifications from file paths or URLs. The endpoint
// name is derived from the file name.
func (sl *SpecLoader) LoadFromFiles(ctx context.Context, filePaths []string) ([]*LoadedSpec, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	configs := make(map[string]*auth.OAuthConfig, len(filePaths))
	for _, filePath := range filePaths {
		endpoint := sl.extractEndpointFromPath(filePath)
		configs[endpoint] = oauthConfigFor(endpoint, nil)
	}
	sl.authStateManager.UpdateManagers(configs, sl.client)

	next := make(map[string]*LoadedSpec, len(sl.loadedSpecs)+len(filePaths))
	for endpoint, ls := range sl.loadedSpecs {
		next[endpoint] = ls
	}

	var loadedSpecs []*LoadedSpec
	for _, filePath := range filePaths {
		loadedSpec, err := sl.loadFromFile(ctx, filePath)
		if err != nil {
			log.Printf("Failed to load spec from file %s: %v", filePath, err)
			continue
		}

		loadedSpecs = append(loadedSpecs, loadedSpec)
		next[loadedSpec.Endpoint] = loadedSpec
	}
	sl.loadedSpecs = next

	return loadedSpecs, nil
}

// loadFromFile loads a specification from a single file or URL
func (sl *SpecLoader) loadFromFile(ctx context.Context, filePath string) (*LoadedSpec, error) {
	var content []byte
	var err error

	if strings.HasPrefix(filePath, "http://") || strings.HasPrefix(filePath, "https://") {
		content, err = sl.loadFromURL(ctx, filePath)
	} else {
		content, err = sl.loadFromLocalFile(ctx, filePath)
	}
	if err != nil {
		return nil, err
	}

	endpoint := sl.extractEndpointFromPath(filePath)
	return sl.processSpec(ctx, endpoint, content, nil)
}

// loadFromURL fetches specification content over HTTP
func (sl *SpecLoader) loadFromURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to create request")
	}

	resp, err := sl.client.Do(req)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeNetwork, "failed to fetch spec from URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, server.NewErrorWithContext(ctx, server.ErrorTypeNetwork,
			fmt.Sprintf("HTTP %d when fetching spec", resp.StatusCode), url)
	}

	return sl.readAll(resp.Body)
}

// loadFromLocalFile reads specification content from disk
func (sl *SpecLoader) loadFromLocalFile(ctx context.Context, filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, server.NewErrorWithContext(ctx, server.ErrorTypeNotFound,
				"spec file not found", filePath)
		}
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeInternal, "failed to read spec file")
	}
	defer f.Close()

	return sl.readAll(f)
}

// readAll copies a spec document through a pooled buffer, enforcing the size
// cap and the memory limit.
func (sl *SpecLoader) readAll(r io.Reader) ([]byte, error) {
	if !sl.limiter.Allow() {
		allocMB, _ := sl.limiter.Stats()
		return nil, server.NewError(server.ErrorTypeInternal,
			"memory limit exceeded while loading specs", fmt.Sprintf("%d MB allocated", allocMB))
	}

	buf := sl.buffers.Get()
	defer sl.buffers.Put(buf)

	n, err := buf.ReadFrom(io.LimitReader(r, maxSpecSize+1))
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeInternal, "failed to read spec content")
	}
	if n > maxSpecSize {
		return nil, server.NewError(server.ErrorTypeValidation,
			"spec document exceeds size limit", fmt.Sprintf("%d bytes", maxSpecSize))
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// processSpec parses, resolves and translates raw specification content and
// wires the endpoint's executor.
func (sl *SpecLoader) processSpec(ctx context.Context, endpoint string, content []byte, sp *models.OpenAPISpec) (*LoadedSpec, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(content)
	if err != nil {
		return nil, server.WrapWithContext(ctx, err, server.ErrorTypeValidation, "failed to parse OpenAPI spec")
	}

	ops, err := spec.ResolveDocument(doc)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry()
	for _, t := range tool.Translate(ops) {
		registry.Register(t)
	}

	creds, _ := sl.authStateManager.GetManager(endpoint)
	sl.reportAuthRequirements(endpoint, creds)

	exec := executor.New(registry, creds, executor.Options{
		BaseURL:    baseURLFor(endpoint, sp, doc),
		Timeout:    sl.timeout,
		HTTPClient: sl.client,
	})

	log.Printf("Loaded endpoint %s with %d tools", endpoint, registry.Len())

	return &LoadedSpec{
		Endpoint: endpoint,
		Doc:      doc,
		Spec:     sp,
		Registry: registry,
		Executor: exec,
		LoadedAt: time.Now(),
	}, nil
}

// reportAuthRequirements records the environment variables an unconfigured
// endpoint would need, so startup can print one actionable summary. The
// caller holds mu.
func (sl *SpecLoader) reportAuthRequirements(endpoint string, creds *auth.TokenManager) {
	if creds != nil && creds.Configured() {
		return
	}

	prefix := envPrefix(endpoint)
	sl.requiredEnvVars[prefix+"_CLIENT_ID"] = "OAuth client id for " + endpoint
	sl.requiredEnvVars[prefix+"_CLIENT_SECRET"] = "OAuth client secret for " + endpoint
	sl.requiredEnvVars[prefix+"_TOKEN_URL"] = "OAuth token endpoint for " + endpoint
}

// oauthConfigFor resolves the credential configuration for an endpoint:
// database columns first, then <ENDPOINT>_* environment variables, then the
// API_* defaults shared by all endpoints.
func oauthConfigFor(endpoint string, sp *models.OpenAPISpec) *auth.OAuthConfig {
	if sp != nil && sp.HasOAuth() {
		return &auth.OAuthConfig{
			ClientID:     *sp.ClientID,
			ClientSecret: *sp.ClientSecret,
			TokenURL:     *sp.TokenURL,
		}
	}

	if cfg := auth.OAuthConfigFromEnv(os.Getenv, envPrefix(endpoint)); cfg != nil {
		return cfg
	}
	return auth.OAuthConfigFromEnv(os.Getenv, "API")
}

// baseURLFor resolves the target API base URL: database column, then
// <ENDPOINT>_BASE_URL, then API_BASE_URL, then the document's first server.
func baseURLFor(endpoint string, sp *models.OpenAPISpec, doc *openapi3.T) string {
	if sp != nil && sp.BaseURL != nil && *sp.BaseURL != "" {
		return *sp.BaseURL
	}
	if v := os.Getenv(envPrefix(endpoint) + "_BASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		return v
	}
	if doc != nil && len(doc.Servers) > 0 {
		return doc.Servers[0].URL
	}
	return ""
}

// envPrefix converts an endpoint path into its environment variable prefix:
// "petstore" -> "PETSTORE", "billing-v2" -> "BILLING_V2".
func envPrefix(endpoint string) string {
	prefix := strings.ToUpper(strings.Trim(endpoint, "/"))
	prefix = strings.NewReplacer("-", "_", "/", "_", ".", "_").Replace(prefix)
	return prefix
}

// extractEndpointFromPath extracts an endpoint name from a file path or URL
func (sl *SpecLoader) extractEndpointFromPath(path string) string {
	if strings.HasPrefix(path, "http") {
		parts := strings.Split(path, "/")
		if len(parts) > 0 {
			filename := parts[len(parts)-1]
			if idx := strings.Index(filename, "?"); idx != -1 {
				filename = filename[:idx]
			}
			if idx := strings.LastIndex(filename, "."); idx != -1 {
				filename = filename[:idx]
			}
			return strings.ToLower(filename)
		}
	}

	baseName := filepath.Base(path)
	if idx := strings.LastIndex(baseName, "."); idx != -1 {
		baseName = baseName[:idx]
	}

	return strings.ToLower(baseName)
}

// GetLoadedSpecs returns all currently loaded specifications keyed by
// endpoint path. The returned map is a snapshot that no later load mutates.
func (sl *SpecLoader) GetLoadedSpecs() map[string]*LoadedSpec {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.loadedSpecs
}

// GetSpec returns one loaded specification by endpoint path.
func (sl *SpecLoader) GetSpec(endpoint string) (*LoadedSpec, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	sp, ok := sl.loadedSpecs[endpoint]
	return sp, ok
}

// GetRequiredEnvVars returns the environment variables that would complete
// the credential configuration of unconfigured endpoints.
func (sl *SpecLoader) GetRequiredEnvVars() map[string]string {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	out := make(map[string]string, len(sl.requiredEnvVars))
	for name, desc := range sl.requiredEnvVars {
		out[name] = desc
	}
	return out
}

// Reload reloads all database-backed specifications and returns the endpoint
// paths now being served.
func (sl *SpecLoader) Reload(ctx context.Context) ([]string, error) {
	if sl.specLoaderService == nil {
		return nil, server.NewError(server.ErrorTypeDatabase, "reload requires database mode", "")
	}

	loadedSpecs, err := sl.LoadFromDatabase(ctx)
	if err != nil {
		return nil, err
	}

	var reloadedAPIs []string
	for _, sp := range loadedSpecs {
		reloadedAPIs = append(reloadedAPIs, sp.Endpoint)
	}
	return reloadedAPIs, nil
}
