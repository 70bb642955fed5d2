package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specPath = "../../api/openapi.yaml"

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	require.NoError(t, err, "Failed to load OpenAPI spec")
	return doc
}

func TestOpenAPISpecIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	require.NoError(t, err, "Failed to load OpenAPI spec")

	err = doc.Validate(loader.Context)
	require.NoError(t, err, "OpenAPI spec validation failed")

	assert.Equal(t, "Bookswap Chat API", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotEmpty(t, doc.Servers, "At least one server should be defined")
}

func TestAllRoutesAreDocumentedInOpenAPI(t *testing.T) {
	doc := loadSpec(t)

	implementedRoutes := []struct {
		method string
		path   string
	}{
		{"POST", "/api/chat/init"},
		{"GET", "/api/chat/{chatID}/messages"},
		{"POST", "/api/chat/{chatID}/messages"},
		{"PUT", "/api/chat/{chatID}/read"},
		{"GET", "/api/chat/user/{role}/{userID}"},
		{"GET", "/api/chat/seller/{sellerID}/active"},
		{"GET", "/api/chat/unread/{role}/{userID}"},
		{"POST", "/api/chat/cache/clear"},
	}

	for _, route := range implementedRoutes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			pathItem := doc.Paths.Find(route.path)
			require.NotNil(t, pathItem, "Path not found in OpenAPI spec: %s", route.path)

			operation := pathItem.GetOperation(route.method)
			require.NotNil(t, operation, "Operation not found in OpenAPI spec: %s %s", route.method, route.path)

			assert.NotEmpty(t, operation.OperationID, "OperationID should be set")
			assert.NotEmpty(t, operation.Responses, "Responses should be defined")
		})
	}
}

func TestOpenAPISchemas(t *testing.T) {
	doc := loadSpec(t)

	require.NotNil(t, doc.Components)
	for _, name := range []string{"Role", "Message", "ThreadSummary"} {
		assert.Contains(t, doc.Components.Schemas, name, "schema %s should be defined", name)
	}
}

func TestShouldSkipPath(t *testing.T) {
	skipPaths := []string{"/health", "/health/ready", "/metrics"}

	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/health/ready", true},
		{"/metrics", true},
		{"/api/chat/init", false},
		{"/api/chat/t1/messages", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldSkipPath(tt.path, skipPaths), tt.path)
	}
}

func TestDefaultOpenAPIValidatorConfig(t *testing.T) {
	config := DefaultOpenAPIValidatorConfig()

	assert.Equal(t, "api/openapi.yaml", config.SpecPath)
	assert.True(t, config.ValidateRequests)
	assert.False(t, config.ValidateResponses)
	assert.Contains(t, config.SkipPaths, "/health")
	assert.Contains(t, config.SkipPaths, "/metrics")
}

func TestOpenAPIMiddlewareWithInvalidSpec(t *testing.T) {
	config := &OpenAPIValidatorConfig{
		Enabled:  true,
		SpecPath: "/nonexistent/path/to/spec.yaml",
	}

	// A missing spec degrades to a pass-through middleware.
	middleware := OpenAPIValidator(config)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat/t1/messages", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIMiddlewareDisabled(t *testing.T) {
	config := &OpenAPIValidatorConfig{Enabled: false}

	middleware := OpenAPIValidator(config)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIValidatorRejectsUndocumentedPath(t *testing.T) {
	config := &OpenAPIValidatorConfig{
		Enabled:          true,
		SpecPath:         specPath,
		ValidateRequests: true,
		SkipPaths:        []string{"/health"},
	}

	middleware := OpenAPIValidator(config)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not found in OpenAPI spec")
}

func TestOpenAPIValidatorAcceptsDocumentedRequest(t *testing.T) {
	config := &OpenAPIValidatorConfig{
		Enabled:          true,
		SpecPath:         specPath,
		ValidateRequests: true,
	}

	middleware := OpenAPIValidator(config)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/api/chat/t1/messages", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
