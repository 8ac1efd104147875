package repository

import (
	"database/sql"
	"fmt"

	"github.com/toolwire/openapi-mcp/pkg/models"
)

// specColumns is the select list shared by every read query. Order must match
// scanSpec.
const specColumns = `id, name, title, version, spec_content, endpoint_path, file_format, file_size, api_key_token, client_id, client_secret, token_url, base_url, is_active, created_at, updated_at`

// OpenAPISpecRepository handles database operations for OpenAPI specs
type OpenAPISpecRepository struct {
	db *sql.DB
}

// NewOpenAPISpecRepository creates a new repository instance
func NewOpenAPISpecRepository(db *sql.DB) *OpenAPISpecRepository {
	return &OpenAPISpecRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpec(row rowScanner) (*models.OpenAPISpec, error) {
	spec := &models.OpenAPISpec{}
	err := row.Scan(
		&spec.ID,
		&spec.Name,
		&spec.Title,
		&spec.Version,
		&spec.SpecContent,
		&spec.EndpointPath,
		&spec.FileFormat,
		&spec.FileSize,
		&spec.ApiKeyToken,
		&spec.ClientID,
		&spec.ClientSecret,
		&spec.TokenURL,
		&spec.BaseURL,
		&spec.IsActive,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// Create inserts a new OpenAPI spec into the database
func (r *OpenAPISpecRepository) Create(spec *models.OpenAPISpec) (*models.OpenAPISpec, error) {
	query := `
		INSERT INTO openapi_specs (name, title, version, spec_content, endpoint_path, file_format, file_size, api_key_token, client_id, client_secret, token_url, base_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		spec.Name,
		spec.Title,
		spec.Version,
		spec.SpecContent,
		spec.EndpointPath,
		spec.FileFormat,
		spec.FileSize,
		spec.ApiKeyToken,
		spec.ClientID,
		spec.ClientSecret,
		spec.TokenURL,
		spec.BaseURL,
		spec.IsActive,
	).Scan(&spec.ID, &spec.CreatedAt, &spec.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create openapi spec: %v", err)
	}

	return spec, nil
}

// GetByID retrieves an OpenAPI spec by its ID
func (r *OpenAPISpecRepository) GetByID(id int) (*models.OpenAPISpec, error) {
	query := `SELECT ` + specColumns + ` FROM openapi_specs WHERE id = $1`

	spec, err := scanSpec(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("openapi spec with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get openapi spec: %v", err)
	}

	return spec, nil
}

// GetByName retrieves an OpenAPI spec by its name
func (r *OpenAPISpecRepository) GetByName(name string) (*models.OpenAPISpec, error) {
	query := `SELECT ` + specColumns + ` FROM openapi_specs WHERE name = $1`

	spec, err := scanSpec(r.db.QueryRow(query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("openapi spec with name %s not found", name)
		}
		return nil, fmt.Errorf("failed to get openapi spec: %v", err)
	}

	return spec, nil
}

// GetByEndpointPath retrieves an OpenAPI spec by its endpoint path
func (r *OpenAPISpecRepository) GetByEndpointPath(path string) (*models.OpenAPISpec, error) {
	query := `SELECT ` + specColumns + ` FROM openapi_specs WHERE endpoint_path = $1`

	spec, err := scanSpec(r.db.QueryRow(query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("openapi spec with endpoint path %s not found", path)
		}
		return nil, fmt.Errorf("failed to get openapi spec: %v", err)
	}

	return spec, nil
}

func (r *OpenAPISpecRepository) queryMany(query string) ([]*models.OpenAPISpec, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query openapi specs: %v", err)
	}
	defer rows.Close()

	var specs []*models.OpenAPISpec
	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan openapi spec: %v", err)
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate openapi specs: %v", err)
	}

	return specs, nil
}

// GetAll retrieves all OpenAPI specs
func (r *OpenAPISpecRepository) GetAll() ([]*models.OpenAPISpec, error) {
	return r.queryMany(`SELECT ` + specColumns + ` FROM openapi_specs ORDER BY created_at DESC`)
}

// GetActive retrieves all active OpenAPI specs
func (r *OpenAPISpecRepository) GetActive() ([]*models.OpenAPISpec, error) {
	return r.queryMany(`SELECT ` + specColumns + ` FROM openapi_specs WHERE is_active = true ORDER BY created_at DESC`)
}

// Update modifies an existing OpenAPI spec
func (r *OpenAPISpecRepository) Update(spec *models.OpenAPISpec) (*models.OpenAPISpec, error) {
	query := `
		UPDATE openapi_specs
		SET name = $2, title = $3, version = $4, spec_content = $5, endpoint_path = $6,
		    file_format = $7, file_size = $8, api_key_token = $9, client_id = $10,
		    client_secret = $11, token_url = $12, base_url = $13, is_active = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(
		query,
		spec.ID,
		spec.Name,
		spec.Title,
		spec.Version,
		spec.SpecContent,
		spec.EndpointPath,
		spec.FileFormat,
		spec.FileSize,
		spec.ApiKeyToken,
		spec.ClientID,
		spec.ClientSecret,
		spec.TokenURL,
		spec.BaseURL,
		spec.IsActive,
	).Scan(&spec.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to update openapi spec: %v", err)
	}

	return spec, nil
}

// Delete removes an OpenAPI spec from the database
func (r *OpenAPISpecRepository) Delete(id int) error {
	return r.execOne(`DELETE FROM openapi_specs WHERE id = $1`, id)
}

// SetActive sets the is_active status of an OpenAPI spec
func (r *OpenAPISpecRepository) SetActive(id int, active bool) error {
	return r.execOne(`UPDATE openapi_specs SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// UpdateApiKeyToken updates the static API key token for an OpenAPI spec
func (r *OpenAPISpecRepository) UpdateApiKeyToken(id int, apiKeyToken *string) error {
	return r.execOne(`UPDATE openapi_specs SET api_key_token = $2, updated_at = NOW() WHERE id = $1`, id, apiKeyToken)
}

// UpdateOAuth updates the client-credentials configuration for an OpenAPI
// spec. Nil values clear the corresponding column.
func (r *OpenAPISpecRepository) UpdateOAuth(id int, clientID, clientSecret, tokenURL, baseURL *string) error {
	query := `
		UPDATE openapi_specs
		SET client_id = $2, client_secret = $3, token_url = $4, base_url = $5, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(query, id, clientID, clientSecret, tokenURL, baseURL)
}

func (r *OpenAPISpecRepository) execOne(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update openapi spec: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("openapi spec not found")
	}

	return nil
}
