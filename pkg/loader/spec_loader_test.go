package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const petstoreSpec = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
servers:
  - url: https://api.petstore.example.com/v1
paths:
  /users/{userId}:
    get:
      operationId: getUser
      parameters:
        - name: userId
          in: path
          required: true
          schema:
            type: integer
      responses:
        '200':
          description: the user
  /users:
    post:
      operationId: createUser
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
      responses:
        '201':
          description: created
`

func writeSpecFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFiles(t *testing.T) {
	path := writeSpecFile(t, "petstore.yaml", petstoreSpec)

	sl := NewSpecLoader(nil, nil, Options{})
	loaded, err := sl.LoadFromFiles(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	ls := loaded[0]
	require.Equal(t, "petstore", ls.Endpoint)
	require.Equal(t, 2, ls.Registry.Len())
	require.NotNil(t, ls.Executor)
	require.NotNil(t, ls.Doc)

	_, ok := ls.Registry.Get("getUser")
	require.True(t, ok)
	_, ok = ls.Registry.Get("createUser")
	require.True(t, ok)

	got, ok := sl.GetSpec("petstore")
	require.True(t, ok)
	require.Equal(t, ls, got)
}

func TestLoadFromFilesSkipsBrokenSpec(t *testing.T) {
	good := writeSpecFile(t, "good.yaml", petstoreSpec)
	bad := writeSpecFile(t, "bad.yaml", "{{{ not a spec")

	sl := NewSpecLoader(nil, nil, Options{})
	loaded, err := sl.LoadFromFiles(context.Background(), []string{bad, good})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "good", loaded[0].Endpoint)
}

func TestLoadFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(petstoreSpec))
	}))
	t.Cleanup(srv.Close)

	sl := NewSpecLoader(nil, nil, Options{HTTPClient: srv.Client()})
	loaded, err := sl.LoadFromFiles(context.Background(), []string{srv.URL + "/specs/petstore.yaml"})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "petstore", loaded[0].Endpoint)
}

func TestConcurrentLoadsAndReads(t *testing.T) {
	path := writeSpecFile(t, "petstore.yaml", petstoreSpec)

	sl := NewSpecLoader(nil, nil, Options{})

	// Reloads and reads from independent goroutines must not race on the
	// loader's spec and env-var maps (run with -race).
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sl.LoadFromFiles(context.Background(), []string{path})
			sl.GetLoadedSpecs()
			sl.GetRequiredEnvVars()
			sl.GetSpec("petstore")
		}()
	}
	wg.Wait()

	ls, ok := sl.GetSpec("petstore")
	require.True(t, ok)
	require.Equal(t, 2, ls.Registry.Len())
}

func TestRequiredEnvVarsReported(t *testing.T) {
	path := writeSpecFile(t, "billing.yaml", petstoreSpec)

	sl := NewSpecLoader(nil, nil, Options{})
	_, err := sl.LoadFromFiles(context.Background(), []string{path})
	require.NoError(t, err)

	vars := sl.GetRequiredEnvVars()
	require.Contains(t, vars, "BILLING_CLIENT_ID")
	require.Contains(t, vars, "BILLING_CLIENT_SECRET")
	require.Contains(t, vars, "BILLING_TOKEN_URL")
}

func TestEnvPrefix(t *testing.T) {
	require.Equal(t, "PETSTORE", envPrefix("petstore"))
	require.Equal(t, "PETSTORE", envPrefix("/petstore"))
	require.Equal(t, "BILLING_V2", envPrefix("billing-v2"))
	require.Equal(t, "A_B", envPrefix("a/b"))
}

func TestExtractEndpointFromPath(t *testing.T) {
	sl := NewSpecLoader(nil, nil, Options{})

	require.Equal(t, "petstore", sl.extractEndpointFromPath("specs/petstore.yaml"))
	require.Equal(t, "weather", sl.extractEndpointFromPath("/opt/specs/Weather.json"))
	require.Equal(t, "billing", sl.extractEndpointFromPath("https://example.com/apis/billing.yaml?v=2"))
}

func TestBaseURLFallsBackToDocServer(t *testing.T) {
	path := writeSpecFile(t, "petstore.yaml", petstoreSpec)

	sl := NewSpecLoader(nil, nil, Options{})
	loaded, err := sl.LoadFromFiles(context.Background(), []string{path})
	require.NoError(t, err)

	require.Equal(t, "https://api.petstore.example.com/v1", baseURLFor("petstore", nil, loaded[0].Doc))
}

func TestBaseURLFromEnv(t *testing.T) {
	t.Setenv("ORDERS_BASE_URL", "https://orders.internal")
	require.Equal(t, "https://orders.internal", baseURLFor("orders", nil, nil))
}
