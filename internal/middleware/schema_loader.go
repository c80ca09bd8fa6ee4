package middleware

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	contextutils "learnanalytics/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names as constants
const (
	AnalyzeMistakeRequestSchema = "AnalyzeMistakeRequest"
)

// SchemaLoader holds compiled JSON schemas keyed by name
type SchemaLoader struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader() *SchemaLoader {
	return &SchemaLoader{
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// LoadEmbeddedSchemas compiles every schema shipped with the binary. The file name without
// extension becomes the schema name.
func LoadEmbeddedSchemas() (*SchemaLoader, error) {
	loader := NewSchemaLoader()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list embedded schemas")
	}

	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to read schema %s", entry.Name())
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		if err := loader.AddSchema(name, data); err != nil {
			return nil, err
		}
	}
	return loader, nil
}

// AddSchema compiles a JSON schema document under name
func (sl *SchemaLoader) AddSchema(name string, document []byte) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to compile schema %s", name)
	}
	sl.schemas[name] = schema
	return nil
}

// HasSchema reports whether name is loaded
func (sl *SchemaLoader) HasSchema(name string) bool {
	_, ok := sl.schemas[name]
	return ok
}

// ValidateJSON validates a raw JSON document against a schema
func (sl *SchemaLoader) ValidateJSON(document []byte, schemaName string) error {
	schema, exists := sl.schemas[schemaName]
	if !exists {
		return contextutils.ErrorWithContextf("schema %s not found", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "request body is not valid JSON")
	}

	if !result.Valid() {
		var validationErrors []string
		for _, validationErr := range result.Errors() {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		sort.Strings(validationErrors)
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "schema validation failed: %s", strings.Join(validationErrors, "; "))
	}

	return nil
}
