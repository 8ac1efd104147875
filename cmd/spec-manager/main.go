package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/toolwire/openapi-mcp/pkg/database"
	"github.com/toolwire/openapi-mcp/pkg/models"
	"github.com/toolwire/openapi-mcp/pkg/services"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" {
		printHelp()
		return
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	if err := database.InitializeDatabase(databaseURL); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	specLoader := services.NewSpecLoaderService(database.DB)

	switch command {
	case "list":
		handleList(specLoader, false)
	case "active":
		handleList(specLoader, true)
	case "import":
		handleImport(specLoader)
	case "activate":
		handleSetActive(specLoader, true)
	case "deactivate":
		handleSetActive(specLoader, false)
	case "delete":
		handleDelete(specLoader)
	case "set-token":
		handleSetToken(specLoader)
	case "set-oauth":
		handleSetOAuth(specLoader)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("OpenAPI Spec Manager")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                                        List all specs in the database")
	fmt.Println("  active                                      List only active specs")
	fmt.Println("  import <file> <name> <endpoint>             Import a spec file into the database")
	fmt.Println("  activate <id>                               Activate a spec by ID")
	fmt.Println("  deactivate <id>                             Deactivate a spec by ID")
	fmt.Println("  delete <id>                                 Delete a spec by ID")
	fmt.Println("  set-token <id> <token>                      Set the static API key token for a spec")
	fmt.Println("  set-oauth <id> <client-id> <client-secret> <token-url> [base-url]")
	fmt.Println("                                              Set OAuth client credentials for a spec")
	fmt.Println("  help                                        Show this help message")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  spec-manager import weather.yaml weather /weather")
	fmt.Println("  spec-manager set-oauth 1 my-client my-secret https://auth.example.com/token")
	fmt.Println("  spec-manager set-oauth 1 \"\" \"\" \"\"  (to clear OAuth configuration)")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL                                PostgreSQL connection string")
}

func handleList(specLoader *services.SpecLoaderService, activeOnly bool) {
	var specs []*models.OpenAPISpec
	var err error
	if activeOnly {
		specs, err = specLoader.GetActiveSpecs()
	} else {
		specs, err = specLoader.GetAllSpecs()
	}
	if err != nil {
		log.Fatalf("Failed to get specs: %v", err)
	}

	if len(specs) == 0 {
		fmt.Println("No specs found in the database.")
		return
	}

	fmt.Printf("%-4s %-20s %-30s %-10s %-8s %-8s %-6s %s\n", "ID", "Name", "Title", "Version", "Active", "Format", "Auth", "Endpoint")
	fmt.Println(strings.Repeat("-", 110))

	for _, spec := range specs {
		title := truncate(strValue(spec.Title), 28)
		version := truncate(strValue(spec.Version), 8)
		name := truncate(spec.Name, 18)

		active := "false"
		if spec.IsActive != nil && *spec.IsActive {
			active = "true"
		}

		auth := "none"
		switch {
		case spec.HasOAuth():
			auth = "oauth"
		case strValue(spec.ApiKeyToken) != "":
			auth = "token"
		}

		fmt.Printf("%-4d %-20s %-30s %-10s %-8s %-8s %-6s %s\n",
			spec.ID, name, title, version, active, strValue(spec.FileFormat), auth, spec.EndpointPath)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func handleImport(specLoader *services.SpecLoaderService) {
	if len(os.Args) < 5 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager import <file-path> <name> <endpoint-path>\n")
		os.Exit(1)
	}

	filePath := os.Args[2]
	name := os.Args[3]
	endpointPath := os.Args[4]

	if err := specLoader.ImportSpecFromFile(filePath, name, endpointPath, services.ImportOptions{}); err != nil {
		log.Fatalf("Failed to import spec: %v", err)
	}

	fmt.Printf("Successfully imported spec '%s' from '%s' with endpoint '%s'\n", name, filePath, endpointPath)
}

func handleSetActive(specLoader *services.SpecLoaderService, active bool) {
	verb := "activate"
	if !active {
		verb = "deactivate"
	}
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager %s <id>\n", verb)
		os.Exit(1)
	}

	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid ID: %v", err)
	}

	if active {
		err = specLoader.ActivateSpec(id)
	} else {
		err = specLoader.DeactivateSpec(id)
	}
	if err != nil {
		log.Fatalf("Failed to %s spec: %v", verb, err)
	}

	fmt.Printf("Successfully %sd spec with ID %d\n", verb, id)
}

func handleDelete(specLoader *services.SpecLoaderService) {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager delete <id>\n")
		os.Exit(1)
	}

	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid ID: %v", err)
	}

	if err := specLoader.DeleteSpec(id); err != nil {
		log.Fatalf("Failed to delete spec: %v", err)
	}

	fmt.Printf("Successfully deleted spec with ID %d\n", id)
}

func handleSetToken(specLoader *services.SpecLoaderService) {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager set-token <id> <token>\n")
		fmt.Fprintf(os.Stderr, "       spec-manager set-token <id> \"\"  (to clear token)\n")
		os.Exit(1)
	}

	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid ID: %v", err)
	}

	tokenPtr := optionalString(os.Args[3])
	if err := specLoader.UpdateApiKeyToken(id, tokenPtr); err != nil {
		log.Fatalf("Failed to update API key token: %v", err)
	}

	if tokenPtr == nil {
		fmt.Printf("Successfully cleared API key token for spec with ID %d\n", id)
	} else {
		fmt.Printf("Successfully set API key token for spec with ID %d\n", id)
	}
}

func handleSetOAuth(specLoader *services.SpecLoaderService) {
	if len(os.Args) < 6 {
		fmt.Fprintf(os.Stderr, "Usage: spec-manager set-oauth <id> <client-id> <client-secret> <token-url> [base-url]\n")
		fmt.Fprintf(os.Stderr, "       spec-manager set-oauth <id> \"\" \"\" \"\"  (to clear OAuth configuration)\n")
		os.Exit(1)
	}

	id, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid ID: %v", err)
	}

	clientID := optionalString(os.Args[3])
	clientSecret := optionalString(os.Args[4])
	tokenURL := optionalString(os.Args[5])
	var baseURL *string
	if len(os.Args) > 6 {
		baseURL = optionalString(os.Args[6])
	}

	if err := specLoader.UpdateOAuth(id, clientID, clientSecret, tokenURL, baseURL); err != nil {
		log.Fatalf("Failed to update OAuth configuration: %v", err)
	}

	if clientID == nil && clientSecret == nil && tokenURL == nil {
		fmt.Printf("Successfully cleared OAuth configuration for spec with ID %d\n", id)
	} else {
		fmt.Printf("Successfully set OAuth configuration for spec with ID %d\n", id)
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
