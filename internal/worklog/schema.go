package worklog

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed worklog.schema.json
var schemaData []byte

var (
	fileSchema  *jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
)

// compileSchema compiles the embedded work-log schema once.
func compileSchema() error {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaData))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal worklog schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("worklog.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add worklog schema resource: %w", err)
			return
		}
		fileSchema, compileErr = compiler.Compile("worklog.schema.json")
	})
	return compileErr
}

// validateShape checks decoded JSON against the work-log file schema. Field
// level checks stay in validateEntry so one bad record does not abort the
// whole file.
func validateShape(doc any) error {
	if err := compileSchema(); err != nil {
		return err
	}
	if err := fileSchema.Validate(doc); err != nil {
		return fmt.Errorf("work-log file shape: %w", err)
	}
	return nil
}
