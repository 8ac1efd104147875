package spec

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/require"

	"github.com/toolwire/openapi-mcp/pkg/server"
)

func loadDoc(t *testing.T, data string) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(data))
	require.NoError(t, err)
	return doc
}

const petstoreDoc = `
openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
paths:
  /users/{userId}:
    parameters:
      - name: userId
        in: path
        required: true
        schema:
          type: integer
    get:
      operationId: getUser
      summary: Fetch a user
      parameters:
        - $ref: '#/components/parameters/Verbose'
      responses:
        '200':
          description: the user
  /users:
    get:
      operationId: listUsers
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
            default: 20
      responses:
        '200':
          description: users
    post:
      operationId: createUser
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/User'
      responses:
        '201':
          description: created
components:
  parameters:
    Verbose:
      name: verbose
      in: query
      schema:
        type: boolean
  schemas:
    User:
      type: object
      required: [name]
      properties:
        name:
          type: string
        address:
          $ref: '#/components/schemas/Address'
    Address:
      type: object
      properties:
        city:
          type: string
`

func TestResolveDocumentOrdering(t *testing.T) {
	ops, err := ResolveDocument(loadDoc(t, petstoreDoc))
	require.NoError(t, err)
	require.Len(t, ops, 3)

	// Paths sorted lexically, methods in fixed order within a path.
	require.Equal(t, "/users", ops[0].Path)
	require.Equal(t, "get", ops[0].Method)
	require.Equal(t, "/users", ops[1].Path)
	require.Equal(t, "post", ops[1].Method)
	require.Equal(t, "/users/{userId}", ops[2].Path)
}

func TestResolveDocumentParameters(t *testing.T) {
	ops, err := ResolveDocument(loadDoc(t, petstoreDoc))
	require.NoError(t, err)

	getUser := ops[2]
	require.Equal(t, "getUser", getUser.OperationID)
	require.Len(t, getUser.Parameters, 2)

	// Path-item level parameter comes first, then the referenced one.
	require.Equal(t, "userId", getUser.Parameters[0].Name)
	require.Equal(t, InPath, getUser.Parameters[0].In)
	require.True(t, getUser.Parameters[0].Required)
	require.Equal(t, "integer", getUser.Parameters[0].Schema["type"])

	require.Equal(t, "verbose", getUser.Parameters[1].Name)
	require.Equal(t, InQuery, getUser.Parameters[1].In)
	require.Equal(t, "boolean", getUser.Parameters[1].Schema["type"])

	listUsers := ops[0]
	require.Equal(t, "limit", listUsers.Parameters[0].Name)
	require.EqualValues(t, 20, listUsers.Parameters[0].Schema["default"])
}

func TestResolveDocumentRequestBody(t *testing.T) {
	ops, err := ResolveDocument(loadDoc(t, petstoreDoc))
	require.NoError(t, err)

	createUser := ops[1]
	require.NotNil(t, createUser.RequestBody)
	require.True(t, createUser.RequestBody.Required)
	require.Equal(t, "application/json", createUser.RequestBody.ContentType)

	props, ok := createUser.RequestBody.Schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "name")

	// Nested $ref inlined with no residual pointer.
	address, ok := props["address"].(map[string]any)
	require.True(t, ok)
	addressProps, ok := address["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, addressProps, "city")
}

func TestResolveDocumentPathLevelOverride(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /items:
    parameters:
      - name: limit
        in: query
        schema:
          type: integer
    get:
      operationId: listItems
      parameters:
        - name: limit
          in: query
          required: true
          schema:
            type: string
      responses:
        '200':
          description: ok
`)

	ops, err := ResolveDocument(doc)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Len(t, ops[0].Parameters, 1)

	// Operation-level declaration wins on a (name, location) collision.
	require.True(t, ops[0].Parameters[0].Required)
	require.Equal(t, "string", ops[0].Parameters[0].Schema["type"])
}

func TestResolveDocumentDanglingReference(t *testing.T) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "t", Version: "1"},
		Paths:   openapi3.NewPaths(),
	}
	doc.Paths.Set("/items", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listItems",
			Parameters: openapi3.Parameters{
				{Ref: "#/components/parameters/Missing"},
			},
		},
	})

	_, err := ResolveDocument(doc)
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeSchemaResolution))
	require.Contains(t, err.Error(), "#/components/parameters/Missing")
}

func TestResolveDocumentCyclicReference(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /nodes:
    post:
      operationId: createNode
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Node'
      responses:
        '201':
          description: ok
components:
  schemas:
    Node:
      type: object
      properties:
        child:
          $ref: '#/components/schemas/Node'
`)

	_, err := ResolveDocument(doc)
	require.Error(t, err)
	require.True(t, server.IsType(err, server.ErrorTypeSchemaResolution))
	require.Contains(t, err.Error(), "cyclic schema reference")
}

func TestResolveDocumentNonJSONBody(t *testing.T) {
	doc := loadDoc(t, `
openapi: 3.0.3
info: {title: t, version: "1"}
paths:
  /upload:
    post:
      operationId: upload
      requestBody:
        required: true
        content:
          application/octet-stream:
            schema:
              type: string
              format: binary
      responses:
        '200':
          description: ok
`)

	ops, err := ResolveDocument(doc)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.NotNil(t, ops[0].RequestBody)
	require.True(t, ops[0].RequestBody.Required)
	require.Equal(t, "application/octet-stream", ops[0].RequestBody.ContentType)
	require.Nil(t, ops[0].RequestBody.Schema)
}

func TestResolveDocumentIsolation(t *testing.T) {
	docA := loadDoc(t, `
openapi: 3.0.3
info: {title: a, version: "1"}
paths:
  /things:
    post:
      operationId: createThing
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Payload'
      responses:
        '201': {description: ok}
components:
  schemas:
    Payload:
      type: object
      properties:
        alpha: {type: string}
`)
	docB := loadDoc(t, `
openapi: 3.0.3
info: {title: b, version: "1"}
paths:
  /things:
    post:
      operationId: createThing
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Payload'
      responses:
        '201': {description: ok}
components:
  schemas:
    Payload:
      type: object
      properties:
        beta: {type: string}
`)

	opsA, err := ResolveDocument(docA)
	require.NoError(t, err)
	opsB, err := ResolveDocument(docB)
	require.NoError(t, err)

	// Same component name in two documents resolves against its own document.
	propsA := opsA[0].RequestBody.Schema["properties"].(map[string]any)
	propsB := opsB[0].RequestBody.Schema["properties"].(map[string]any)
	require.Contains(t, propsA, "alpha")
	require.NotContains(t, propsA, "beta")
	require.Contains(t, propsB, "beta")
}
