package pkgdef

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed package.schema.json
var schemaJSON []byte

const schemaURL = "https://oidnpkg.invalid/schemas/package.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse descriptor schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add descriptor schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks the definition against the descriptor schema and the
// rules the schema cannot express.
func (d *Definition) Validate() error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("unmarshal descriptor: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return &ValidationError{Field: "pkg", Message: err.Error()}
	}

	if !strings.Contains(d.Release.URL, "{filename}") {
		return &ValidationError{Field: "release.url", Message: "template must contain {filename}"}
	}

	if d.Verify != nil && d.Verify.PGP != nil {
		keyring := filepath.ToSlash(filepath.Clean(d.Verify.PGP.Keyring))
		if filepath.IsAbs(d.Verify.PGP.Keyring) || keyring == ".." || strings.HasPrefix(keyring, "../") {
			return &ValidationError{Field: "verify.pgp.keyring", Message: "must be a path inside the package source directory"}
		}
	}

	return nil
}
