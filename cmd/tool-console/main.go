// Command tool-console is an interactive console for exploring and calling
// the tools of a single OpenAPI spec. It loads the spec from a file or URL,
// picks up credentials from the environment the same way the server does, and
// executes calls against the live API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/toolwire/openapi-mcp/pkg/loader"
	"github.com/toolwire/openapi-mcp/pkg/tool"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: tool-console <spec-file-or-url>")
		os.Exit(1)
	}
	specPath := os.Args[1]

	log.SetOutput(os.Stderr)

	specLoader := loader.NewSpecLoader(nil, nil, loader.Options{})
	loaded, err := specLoader.LoadFromFiles(context.Background(), []string{specPath})
	if err != nil || len(loaded) == 0 {
		log.Fatalf("Failed to load spec %s: %v", specPath, err)
	}
	ls := loaded[0]

	fmt.Printf("Loaded %s: %d tools. Type 'help' for commands.\n", ls.Endpoint, ls.Registry.Len())

	rl, err := readline.New(ls.Endpoint + "> ")
	if err != nil {
		log.Fatalf("Failed to initialize console: %v", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "help":
			printHelp()
		case "tools":
			listTools(ls.Registry)
		case "schema":
			if len(fields) < 2 {
				fmt.Println("Usage: schema <tool>")
				continue
			}
			showSchema(ls.Registry, fields[1])
		case "call":
			if len(fields) < 2 {
				fmt.Println("Usage: call <tool> [json-arguments]")
				continue
			}
			argsJSON := "{}"
			if len(fields) == 3 {
				argsJSON = fields[2]
			}
			callTool(ls, fields[1], argsJSON)
		case "export":
			outFile := ""
			if len(fields) > 1 {
				outFile = fields[1]
			}
			exportTools(ls.Registry, outFile)
		case "exit", "quit":
			return
		default:
			fmt.Printf("Unknown command: %s (try 'help')\n", fields[0])
		}
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  tools                       List available tools")
	fmt.Println("  schema <tool>               Show a tool's input schema")
	fmt.Println("  call <tool> [json-args]     Execute a tool, e.g. call getUser {\"userId\": 42}")
	fmt.Println("  export [file]               Write the full tool catalog as JSON, to stdout by default")
	fmt.Println("  exit                        Leave the console")
}

func listTools(registry *tool.Registry) {
	for _, t := range registry.List() {
		desc := t.Description
		if len(desc) > 60 {
			desc = desc[:60] + "..."
		}
		fmt.Printf("  %-40s %s\n", t.Name, desc)
	}
}

func showSchema(registry *tool.Registry, name string) {
	t, ok := registry.Get(name)
	if !ok {
		fmt.Printf("No such tool: %s\n", name)
		return
	}
	printJSON(t.InputSchema)
}

func callTool(ls *loader.LoadedSpec, name, argsJSON string) {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		fmt.Printf("Arguments are not valid JSON: %v\n", err)
		return
	}

	result, err := ls.Executor.Execute(context.Background(), name, args)
	if err != nil {
		fmt.Printf("Execution failed: %v\n", err)
		return
	}

	fmt.Printf("HTTP %d\n", result.StatusCode)
	printJSON(result.Body)
}

func exportTools(registry *tool.Registry, outFile string) {
	out, err := json.MarshalIndent(map[string]any{"tools": registry.List()}, "", "  ")
	if err != nil {
		fmt.Printf("Failed to render JSON: %v\n", err)
		return
	}

	if outFile == "" {
		fmt.Println(string(out))
		return
	}
	if err := os.WriteFile(outFile, append(out, '\n'), 0o644); err != nil {
		fmt.Printf("Failed to write %s: %v\n", outFile, err)
		return
	}
	fmt.Printf("Wrote %d tools to %s\n", registry.Len(), outFile)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Failed to render JSON: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
