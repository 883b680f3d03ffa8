package composer

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	planSchema   = "schema/plan.json"
	blurbsSchema = "schema/blurbs.json"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemaCacheMu sync.Mutex
	schemaCache   = make(map[string]*jsonschema.Schema)
)

func loadCompiledSchema(name string) (*jsonschema.Schema, error) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()
	if cached, ok := schemaCache[name]; ok {
		return cached, nil
	}

	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, err
	}
	schemaCache[name] = compiled
	return compiled, nil
}

// decodeValidated decodes a single JSON value from body, checks it against
// the named schema and unmarshals it into out.
func decodeValidated(name, body string, out any) error {
	schema, err := loadCompiledSchema(name)
	if err != nil {
		return fmt.Errorf("compile %s: %w", name, err)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode: trailing data")
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return json.Unmarshal([]byte(body), out)
}
