// Package validate enforces this gateway's own wire contract: an
// embedded OpenAPI document validated via kin-openapi, plus the
// domain-specific field checks spec §6 names (temperature/top_p ranges,
// non-empty message content), and a size/depth guard ahead of both.
package validate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/tributary-ai/octoroute/internal/types"
)

// FieldError is a single OpenAI-shaped validation failure.
type FieldError struct {
	Message string
	Param   string
}

func (e *FieldError) Error() string { return e.Message }

// ChatRequest applies spec §6's domain-specific checks beyond JSON shape:
// non-empty messages, valid roles, non-empty user/system content,
// temperature in [0,2], top_p in [0,1], max_tokens > 0 when present.
func ChatRequest(req *types.ChatRequest) *FieldError {
	if len(req.Messages) == 0 {
		return &FieldError{Message: "messages must be a non-empty array", Param: "messages"}
	}
	for i, m := range req.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return &FieldError{Message: fmt.Sprintf("messages[%d].role must be one of system, user, assistant", i), Param: "messages"}
		}
		if m.Role != "assistant" && m.Content == "" {
			return &FieldError{Message: fmt.Sprintf("messages[%d].content must not be empty", i), Param: "messages"}
		}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return &FieldError{Message: "temperature must be between 0 and 2", Param: "temperature"}
	}
	if req.TopP != nil && (*req.TopP < 0 || *req.TopP > 1) {
		return &FieldError{Message: "top_p must be between 0 and 1", Param: "top_p"}
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return &FieldError{Message: "max_tokens must be greater than 0", Param: "max_tokens"}
	}
	return nil
}

// Schema validates incoming bodies against this gateway's own embedded
// OpenAPI document (built in code, not loaded from a spec file on disk).
type Schema struct {
	router routers.Router
	doc    *openapi3.T
}

// NewSchema constructs and validates the embedded document, building the
// routing table used to match each request to an operation.
func NewSchema() (*Schema, error) {
	doc := buildOpenAPIDoc()
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate: embedded OpenAPI document is invalid: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("validate: failed to build OpenAPI router: %w", err)
	}
	return &Schema{router: router, doc: doc}, nil
}

// Document exposes the embedded OpenAPI document, e.g. for the /docs
// Swagger UI endpoint to serve directly instead of reading a spec file
// off disk.
func (s *Schema) Document() *openapi3.T { return s.doc }

// Request validates r's method, path, and body shape against the
// embedded document. A nil return means the request conforms.
func (s *Schema) Request(r *http.Request) error {
	route, pathParams, err := s.router.FindRoute(r)
	if err != nil {
		return nil // unmatched routes (e.g. /metrics) are not part of the validated contract
	}
	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
	}
	return openapi3filter.ValidateRequest(r.Context(), input)
}

func buildOpenAPIDoc() *openapi3.T {
	chatSchema := openapi3.NewObjectSchema().
		WithProperty("model", openapi3.NewStringSchema()).
		WithProperty("stream", openapi3.NewBoolSchema()).
		WithProperty("messages", openapi3.NewArraySchema().WithItems(
			openapi3.NewObjectSchema().
				WithProperty("role", openapi3.NewStringSchema()).
				WithProperty("content", openapi3.NewStringSchema()),
		))
	chatSchema.Required = []string{"model", "messages"}

	reqBody := openapi3.NewRequestBody().WithJSONSchema(chatSchema)

	completions := openapi3.NewOperation()
	completions.OperationID = "createChatCompletion"
	completions.RequestBody = &openapi3.RequestBodyRef{Value: reqBody}
	completions.Responses = openapi3.NewResponses()

	paths := openapi3.NewPaths()
	paths.Set("/v1/chat/completions", &openapi3.PathItem{Post: completions})

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: "octoroute", Version: "1.0.0"},
		Paths:   paths,
	}
}
