// Command openapi-mcp serves OpenAPI documents as callable tool endpoints.
//
// In database mode (DATABASE_URL set) specs are loaded from PostgreSQL and
// re-polled for changes; otherwise specs are read from files given on the
// command line or found in the specs directory. Each spec is mounted under
// its endpoint path with a tool catalog at /{endpoint}/tools and an execution
// surface at /{endpoint}/run.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/toolwire/openapi-mcp/pkg/auth"
	"github.com/toolwire/openapi-mcp/pkg/database"
	"github.com/toolwire/openapi-mcp/pkg/loader"
	"github.com/toolwire/openapi-mcp/pkg/server"
	"github.com/toolwire/openapi-mcp/pkg/services"
)

const shutdownTimeout = 25 * time.Second

type application struct {
	cfg         *server.Config
	specLoader  *loader.SpecLoader
	specService *services.SpecLoaderService

	mu        sync.RWMutex
	endpoints map[string]*loader.LoadedSpec
	specsHash string
}

func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if !cfg.HTTPMode {
		cfg.HTTPMode = true
		cfg.HTTPAddr = ":8080"
	}
	cfg.LogConfiguration()

	var specService *services.SpecLoaderService
	if cfg.DatabaseMode {
		if err := database.InitializeDatabase(cfg.DatabaseURL); err != nil {
			log.Fatalf("Database initialization failed: %v", err)
		}
		defer database.Close()
		specService = services.NewSpecLoaderService(database.DB)
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout + 5*time.Second}
	specLoader := loader.NewSpecLoader(specService, auth.NewStateManager(), loader.Options{
		Timeout:    cfg.RequestTimeout,
		HTTPClient: httpClient,
	})

	app := &application{
		cfg:         cfg,
		specLoader:  specLoader,
		specService: specService,
		endpoints:   make(map[string]*loader.LoadedSpec),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.loadSpecs(ctx); err != nil {
		log.Fatalf("Initial spec load failed: %v", err)
	}
	app.reportRequiredEnvVars()

	if cfg.DatabaseMode && cfg.PollInterval > 0 {
		go app.pollForChanges(ctx)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: app.buildMux(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// loadSpecs performs the initial load and records the mounted endpoints.
func (app *application) loadSpecs(ctx context.Context) error {
	var (
		loaded []*loader.LoadedSpec
		err    error
	)

	if app.cfg.DatabaseMode {
		loaded, err = app.specLoader.LoadFromDatabase(ctx)
	} else {
		files := app.cfg.SpecFiles
		if len(files) == 0 {
			files, err = specFilesInDir(app.cfg.SpecsDir)
			if err != nil {
				return err
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no OpenAPI spec files found (checked %s)", app.cfg.SpecsDir)
		}
		loaded, err = app.specLoader.LoadFromFiles(ctx, files)
	}
	if err != nil {
		return err
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no specs could be loaded")
	}

	app.mu.Lock()
	app.endpoints = app.specLoader.GetLoadedSpecs()
	app.mu.Unlock()

	for _, ls := range loaded {
		log.Printf("Mounted /%s with %d tools", strings.Trim(ls.Endpoint, "/"), ls.Registry.Len())
	}
	return nil
}

// specFilesInDir lists the spec documents in a directory.
func specFilesInDir(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func (app *application) reportRequiredEnvVars() {
	vars := app.specLoader.GetRequiredEnvVars()
	if len(vars) == 0 {
		return
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Printf("[WARN] Some endpoints have no OAuth configuration; set these to enable it: %s", strings.Join(names, ", "))
}

// pollForChanges watches the database for spec changes and reloads when the
// set of active specs differs from what is mounted.
func (app *application) pollForChanges(ctx context.Context) {
	ticker := time.NewTicker(app.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hash, err := app.currentSpecsHash()
			if err != nil {
				log.Printf("[WARN] Spec poll failed: %v", err)
				continue
			}

			app.mu.RLock()
			changed := hash != app.specsHash
			app.mu.RUnlock()
			if !changed {
				continue
			}

			if _, err := app.reload(ctx); err != nil {
				log.Printf("[WARN] Automatic reload failed: %v", err)
				continue
			}
			app.mu.Lock()
			app.specsHash = hash
			app.mu.Unlock()
		}
	}
}

// currentSpecsHash fingerprints the active spec set so polling can detect
// additions, removals and updates with one cheap query.
func (app *application) currentSpecsHash() (string, error) {
	specs, err := app.specService.GetActiveSpecs()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, sp := range specs {
		fmt.Fprintf(h, "%d:%s:", sp.ID, sp.EndpointPath)
		if sp.UpdatedAt != nil {
			fmt.Fprintf(h, "%d", sp.UpdatedAt.UnixNano())
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (app *application) reload(ctx context.Context) ([]string, error) {
	reloaded, err := app.specLoader.Reload(ctx)
	if err != nil {
		return nil, err
	}

	app.mu.Lock()
	app.endpoints = app.specLoader.GetLoadedSpecs()
	app.mu.Unlock()

	return reloaded, nil
}

func (app *application) buildMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", server.HandleHealth())
	mux.HandleFunc("/apis", server.HandleAPIList(app.listAPIs))
	if app.cfg.DatabaseMode {
		mux.HandleFunc("/reload", server.HandleReload(func() ([]string, error) {
			return app.reload(context.Background())
		}))
		mux.HandleFunc("/specs", withCORS(app.handleSpecs))
		mux.HandleFunc("/specs/", withCORS(app.handleSpecByID))
	}
	mux.HandleFunc("/", app.routeEndpoint)

	return mux
}

// routeEndpoint dispatches /{endpoint}/tools and /{endpoint}/run for the
// dynamically mounted specs.
func (app *application) routeEndpoint(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	endpoint, action := parts[0], parts[1]

	switch action {
	case "tools":
		server.HandleTools(endpoint, app.listTools)(w, r)
	case "run":
		// An inbound Authorization header overrides the configured
		// credentials for this one call.
		ctx := auth.WithAuthContext(r.Context(), auth.CreateAuthContext(r))
		server.HandleRun(endpoint, app.execute)(w, r.WithContext(ctx))
	default:
		http.NotFound(w, r)
	}
}

func (app *application) lookup(endpoint string) (*loader.LoadedSpec, bool) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	ls, ok := app.endpoints[strings.Trim(endpoint, "/")]
	if !ok {
		ls, ok = app.endpoints[endpoint]
	}
	return ls, ok
}

func (app *application) listTools(endpoint string) (any, bool) {
	ls, ok := app.lookup(endpoint)
	if !ok {
		return nil, false
	}
	return ls.Registry.List(), true
}

func (app *application) execute(ctx context.Context, endpoint, toolName string, args map[string]any) (any, error) {
	ls, ok := app.lookup(endpoint)
	if !ok {
		return nil, server.NewError(server.ErrorTypeNotFound, "no such endpoint", endpoint)
	}
	return ls.Executor.Execute(ctx, toolName, args)
}

func (app *application) listAPIs() ([]map[string]any, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	endpoints := make([]string, 0, len(app.endpoints))
	for endpoint := range app.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)

	apis := make([]map[string]any, 0, len(endpoints))
	for _, endpoint := range endpoints {
		ls := app.endpoints[endpoint]
		entry := map[string]any{
			"endpoint":  endpoint,
			"tools":     ls.Registry.Len(),
			"loaded_at": ls.LoadedAt,
		}
		if ls.Doc != nil && ls.Doc.Info != nil {
			entry["title"] = ls.Doc.Info.Title
			entry["version"] = ls.Doc.Info.Version
		}
		apis = append(apis, entry)
	}
	return apis, nil
}

// withCORS adds permissive CORS headers for the spec management surface.
func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

type specPayload struct {
	Name         string  `json:"name"`
	EndpointPath string  `json:"endpoint_path"`
	SpecContent  string  `json:"spec_content"`
	FileFormat   string  `json:"file_format"`
	ApiKeyToken  *string `json:"api_key_token"`
	ClientID     *string `json:"client_id"`
	ClientSecret *string `json:"client_secret"`
	TokenURL     *string `json:"token_url"`
	BaseURL      *string `json:"base_url"`
}

// handleSpecs serves GET /specs (list) and POST /specs (create).
func (app *application) handleSpecs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		specs, err := app.specService.GetAllSpecs()
		if err != nil {
			server.WriteError(w, server.Wrap(err, server.ErrorTypeDatabase, "failed to list specs"))
			return
		}
		server.WriteJSON(w, http.StatusOK, specs)

	case http.MethodPost:
		var payload specPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			server.WriteError(w, server.Wrap(err, server.ErrorTypeValidation, "request body is not valid JSON"))
			return
		}
		if payload.Name == "" || payload.EndpointPath == "" || payload.SpecContent == "" {
			server.WriteError(w, server.NewError(server.ErrorTypeValidation,
				"name, endpoint_path and spec_content are required", ""))
			return
		}
		format := payload.FileFormat
		if format == "" {
			format = "yaml"
		}

		err := app.specService.CreateSpecFromContent(payload.Name, payload.EndpointPath, payload.SpecContent, format, services.ImportOptions{
			ApiKeyToken:  payload.ApiKeyToken,
			ClientID:     payload.ClientID,
			ClientSecret: payload.ClientSecret,
			TokenURL:     payload.TokenURL,
			BaseURL:      payload.BaseURL,
		})
		if err != nil {
			server.WriteError(w, server.Wrap(err, server.ErrorTypeDatabase, "failed to create spec"))
			return
		}
		server.WriteJSON(w, http.StatusCreated, map[string]any{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSpecByID serves the per-spec lifecycle operations:
// POST /specs/{id}/activate, POST /specs/{id}/deactivate,
// PUT /specs/{id}/oauth and DELETE /specs/{id}.
func (app *application) handleSpecByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/specs/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		server.WriteError(w, server.NewError(server.ErrorTypeValidation, "spec id must be numeric", parts[0]))
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		err = app.specService.DeleteSpec(id)
	case len(parts) == 2 && parts[1] == "activate" && r.Method == http.MethodPost:
		err = app.specService.ActivateSpec(id)
	case len(parts) == 2 && parts[1] == "deactivate" && r.Method == http.MethodPost:
		err = app.specService.DeactivateSpec(id)
	case len(parts) == 2 && parts[1] == "oauth" && r.Method == http.MethodPut:
		var payload specPayload
		if decodeErr := json.NewDecoder(r.Body).Decode(&payload); decodeErr != nil {
			server.WriteError(w, server.Wrap(decodeErr, server.ErrorTypeValidation, "request body is not valid JSON"))
			return
		}
		err = app.specService.UpdateOAuth(id, payload.ClientID, payload.ClientSecret, payload.TokenURL, payload.BaseURL)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		server.WriteError(w, server.Wrap(err, server.ErrorTypeDatabase, "spec operation failed"))
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
