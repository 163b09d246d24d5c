package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

const snapshotSchemaURL = "snapshot.schema.json"

var (
	schemaOnce     sync.Once
	schemaJSON     []byte
	compiledSchema *validator.Schema
	schemaErr      error
)

// SnapshotSchema returns the JSON Schema document for Snapshot, reflected
// from the Go type.
func SnapshotSchema() ([]byte, error) {
	loadSchema()
	return schemaJSON, schemaErr
}

func loadSchema() {
	schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties:  true,
			DoNotReference:             true,
			RequiredFromJSONSchemaTags: true,
			Anonymous:                  true,
		}
		schema := reflector.Reflect(&Snapshot{})
		raw, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			schemaErr = fmt.Errorf("marshal snapshot schema: %w", err)
			return
		}
		schemaJSON = raw

		compiler := validator.NewCompiler()
		if err := compiler.AddResource(snapshotSchemaURL, bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("add snapshot schema: %w", err)
			return
		}
		compiledSchema, err = compiler.Compile(snapshotSchemaURL)
		if err != nil {
			schemaErr = fmt.Errorf("compile snapshot schema: %w", err)
		}
	})
}

// DecodeSnapshot validates raw against the snapshot schema and decodes it.
// Every failure wraps ErrCorruptSnapshot.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	loadSchema()
	if schemaErr != nil {
		return Snapshot{}, schemaErr
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}
