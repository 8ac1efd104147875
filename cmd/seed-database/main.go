// Command seed-database imports a declared set of OpenAPI specs, with their
// credential configuration, from a YAML or JSON seed file.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/toolwire/openapi-mcp/pkg/database"
	"github.com/toolwire/openapi-mcp/pkg/services"
)

// SpecConfig defines how each spec should be imported
type SpecConfig struct {
	File         string `json:"file" yaml:"file"`
	Name         string `json:"name" yaml:"name"`
	EndpointPath string `json:"endpoint_path" yaml:"endpoint_path"`
	Active       bool   `json:"active" yaml:"active"`
	ApiKeyToken  string `json:"api_key_token" yaml:"api_key_token"`
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret"`
	TokenURL     string `json:"token_url" yaml:"token_url"`
	BaseURL      string `json:"base_url" yaml:"base_url"`
}

// SeedConfig defines the seeding configuration
type SeedConfig struct {
	Specs []SpecConfig `json:"specs" yaml:"specs"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: seed-database <config-file>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "The config file lists specs to import:")
		fmt.Fprintln(os.Stderr, "  specs:")
		fmt.Fprintln(os.Stderr, "    - file: specs/petstore.yaml")
		fmt.Fprintln(os.Stderr, "      name: petstore")
		fmt.Fprintln(os.Stderr, "      endpoint_path: /petstore")
		fmt.Fprintln(os.Stderr, "      active: true")
		fmt.Fprintln(os.Stderr, "      client_id: my-client")
		fmt.Fprintln(os.Stderr, "      client_secret: my-secret")
		fmt.Fprintln(os.Stderr, "      token_url: https://auth.example.com/token")
		os.Exit(1)
	}
	configFile := os.Args[1]

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if err := database.InitializeDatabase(databaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	specLoader := services.NewSpecLoaderService(database.DB)
	seedFromConfig(specLoader, configFile)
}

func seedFromConfig(specLoader *services.SpecLoaderService, configFile string) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}

	var config SeedConfig
	if strings.ToLower(filepath.Ext(configFile)) == ".json" {
		err = json.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	fmt.Printf("Seeding database with %d specs from config...\n", len(config.Specs))

	imported := 0
	for _, specConfig := range config.Specs {
		opts := services.ImportOptions{
			ApiKeyToken:  optionalString(specConfig.ApiKeyToken),
			ClientID:     optionalString(specConfig.ClientID),
			ClientSecret: optionalString(specConfig.ClientSecret),
			TokenURL:     optionalString(specConfig.TokenURL),
			BaseURL:      optionalString(specConfig.BaseURL),
		}

		if err := specLoader.ImportSpecFromFile(specConfig.File, specConfig.Name, specConfig.EndpointPath, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to import %s: %v\n", specConfig.File, err)
			continue
		}

		fmt.Printf("✓ Imported %s as '%s' with endpoint '%s'\n",
			specConfig.File, specConfig.Name, specConfig.EndpointPath)

		if !specConfig.Active {
			deactivateByName(specLoader, specConfig.Name)
		}

		imported++
	}

	fmt.Printf("\nSeeding completed: %d specs imported successfully\n", imported)
}

func deactivateByName(specLoader *services.SpecLoaderService, name string) {
	specs, err := specLoader.GetAllSpecs()
	if err != nil {
		return
	}
	for _, spec := range specs {
		if spec.Name == name {
			if err := specLoader.DeactivateSpec(spec.ID); err == nil {
				fmt.Printf("  → Deactivated spec '%s'\n", name)
			}
			return
		}
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
