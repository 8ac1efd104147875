// Package services sits between the HTTP/CLI surfaces and the spec
// repository: it parses stored OpenAPI documents, extracts their metadata and
// manages their lifecycle.
package services

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/toolwire/openapi-mcp/pkg/database"
	"github.com/toolwire/openapi-mcp/pkg/models"
	"github.com/toolwire/openapi-mcp/pkg/repository"
)

// SpecLoaderService handles loading OpenAPI specs from the database
type SpecLoaderService struct {
	specRepo *repository.OpenAPISpecRepository
	db       *sql.DB
}

// ImportOptions carries the optional credential fields attached to a spec on
// import.
type ImportOptions struct {
	ApiKeyToken  *string
	ClientID     *string
	ClientSecret *string
	TokenURL     *string
	BaseURL      *string
}

// NewSpecLoaderService creates a new spec loader service
func NewSpecLoaderService(db *sql.DB) *SpecLoaderService {
	return &SpecLoaderService{
		specRepo: repository.NewOpenAPISpecRepository(db),
		db:       db,
	}
}

// ParseSpecContent parses a stored spec into an OpenAPI document. The loader
// accepts both JSON and YAML, so the stored file_format is advisory only.
func (s *SpecLoaderService) ParseSpecContent(spec *models.OpenAPISpec) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(spec.SpecContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI spec content: %v", err)
	}
	return doc, nil
}

// LoadSpecByName loads and parses a specific spec by name
func (s *SpecLoaderService) LoadSpecByName(name string) (*models.OpenAPISpec, *openapi3.T, error) {
	spec, err := s.specRepo.GetByName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load spec by name: %v", err)
	}

	if spec.IsActive != nil && !*spec.IsActive {
		return nil, nil, fmt.Errorf("spec '%s' is not active", name)
	}

	doc, err := s.ParseSpecContent(spec)
	if err != nil {
		return nil, nil, err
	}
	return spec, doc, nil
}

// LoadSpecByEndpoint loads and parses a specific spec by endpoint path
func (s *SpecLoaderService) LoadSpecByEndpoint(endpointPath string) (*models.OpenAPISpec, *openapi3.T, error) {
	spec, err := s.specRepo.GetByEndpointPath(endpointPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load spec by endpoint: %v", err)
	}

	if spec.IsActive != nil && !*spec.IsActive {
		return nil, nil, fmt.Errorf("spec at endpoint '%s' is not active", endpointPath)
	}

	doc, err := s.ParseSpecContent(spec)
	if err != nil {
		return nil, nil, err
	}
	return spec, doc, nil
}

// ImportSpecFromFile imports a spec from a file into the database
func (s *SpecLoaderService) ImportSpecFromFile(filePath, name, endpointPath string, opts ImportOptions) error {
	if database.DB == nil {
		return fmt.Errorf("database connection not initialized")
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read spec file: %v", err)
	}

	format := "yaml"
	if strings.HasSuffix(strings.ToLower(filePath), ".json") {
		format = "json"
	}

	if err := s.createSpec(name, endpointPath, string(content), format, opts); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Successfully imported spec '%s' to database\n", name)
	return nil
}

// CreateSpecFromContent creates a new spec directly from content
func (s *SpecLoaderService) CreateSpecFromContent(name, endpointPath, specContent, fileFormat string, opts ImportOptions) error {
	if database.DB == nil {
		return fmt.Errorf("database connection not initialized")
	}
	return s.createSpec(name, endpointPath, specContent, fileFormat, opts)
}

func (s *SpecLoaderService) createSpec(name, endpointPath, content, format string, opts ImportOptions) error {
	// Parse up front so malformed documents never reach the table, and to
	// extract title and version.
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData([]byte(content))
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI spec: %v", err)
	}

	var title, version *string
	if doc.Info != nil {
		if doc.Info.Title != "" {
			title = &doc.Info.Title
		}
		if doc.Info.Version != "" {
			version = &doc.Info.Version
		}
	}

	spec := models.NewOpenAPISpec(name, content, endpointPath)
	spec.Title = title
	spec.Version = version
	spec.FileFormat = &format
	spec.ApiKeyToken = opts.ApiKeyToken
	spec.ClientID = opts.ClientID
	spec.ClientSecret = opts.ClientSecret
	spec.TokenURL = opts.TokenURL
	spec.BaseURL = opts.BaseURL
	fileSize := len(content)
	spec.FileSize = &fileSize

	if _, err := s.specRepo.Create(spec); err != nil {
		return fmt.Errorf("failed to save spec to database: %v", err)
	}
	return nil
}

// GetAllSpecs returns all specs from the database
func (s *SpecLoaderService) GetAllSpecs() ([]*models.OpenAPISpec, error) {
	return s.specRepo.GetAll()
}

// GetActiveSpecs returns all active specs from the database
func (s *SpecLoaderService) GetActiveSpecs() ([]*models.OpenAPISpec, error) {
	return s.specRepo.GetActive()
}

// ActivateSpec activates a spec by ID
func (s *SpecLoaderService) ActivateSpec(id int) error {
	return s.specRepo.SetActive(id, true)
}

// DeactivateSpec deactivates a spec by ID
func (s *SpecLoaderService) DeactivateSpec(id int) error {
	return s.specRepo.SetActive(id, false)
}

// DeleteSpec deletes a spec by ID
func (s *SpecLoaderService) DeleteSpec(id int) error {
	return s.specRepo.Delete(id)
}

// UpdateApiKeyToken updates the static API key token for a spec by ID
func (s *SpecLoaderService) UpdateApiKeyToken(id int, apiKeyToken *string) error {
	return s.specRepo.UpdateApiKeyToken(id, apiKeyToken)
}

// UpdateOAuth updates the client-credentials configuration for a spec by ID
func (s *SpecLoaderService) UpdateOAuth(id int, clientID, clientSecret, tokenURL, baseURL *string) error {
	return s.specRepo.UpdateOAuth(id, clientID, clientSecret, tokenURL, baseURL)
}
