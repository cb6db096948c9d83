package admin

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/corviddb/pagecache/pkg/buffer"
)

// GraphQLHandler serves the read-only bufferPool introspection schema.
type GraphQLHandler struct {
	schema graphql.Schema
}

// NewGraphQLHandler builds a GraphQLHandler for bp.
func NewGraphQLHandler(bp *buffer.BufferPoolManager) (*GraphQLHandler, error) {
	schema, err := Schema(bp)
	if err != nil {
		return nil, err
	}
	return &GraphQLHandler{schema: schema}, nil
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// ServeHTTP accepts POST requests with a GraphQL query body and executes
// them against the schema. GraphQL errors are reported in the response
// body with a 200 status, the usual GraphQL-over-HTTP convention.
func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeGraphQLError(w, "GraphQL only accepts POST requests", http.StatusMethodNotAllowed)
		return
	}

	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGraphQLError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func writeGraphQLError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{{"message": message}},
	})
}
