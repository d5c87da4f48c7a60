// Package spec содержит OpenAPI-описание REST API каталога.
// Документ встраивается в бинарник, валидируется при старте
// и отдаётся клиентам по /api/v1/openapi.json.
package spec

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiYAML []byte

// Load разбирает и валидирует встроенный OpenAPI-документ.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(openapiYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI-документа: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-документа: %w", err)
	}
	return doc, nil
}

// MarshalJSON сериализует документ для отдачи по HTTP.
func MarshalJSON(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI-документа: %w", err)
	}
	return data, nil
}
