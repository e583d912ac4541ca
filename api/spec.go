package api

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// GetSwagger parses the embedded OpenAPI document used for request
// validation.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()

	swagger, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}

	if err := swagger.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("openapi spec is invalid: %w", err)
	}

	return swagger, nil
}
