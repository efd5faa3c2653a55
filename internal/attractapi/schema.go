package attractapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const shotNodeSchemaURL = "https://attract.local/schemas/shot-node.json"

//go:embed shot_node.schema.json
var shotNodeSchemaJSON []byte

var shotNodeSchema = struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}{}

func loadShotNodeSchema() (*jsonschema.Schema, error) {
	shotNodeSchema.once.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(shotNodeSchemaJSON))
		if err != nil {
			shotNodeSchema.err = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(shotNodeSchemaURL, doc); err != nil {
			shotNodeSchema.err = err
			return
		}
		shotNodeSchema.schema, shotNodeSchema.err = compiler.Compile(shotNodeSchemaURL)
	})
	return shotNodeSchema.schema, shotNodeSchema.err
}

// ValidateNode checks the writable part of a node against the shot schema.
func ValidateNode(node Node) error {
	payload, err := json.Marshal(node.Document())
	if err != nil {
		return err
	}
	return ValidateNodeDocument(payload)
}

// ValidateNodeDocument validates a raw JSON node document. Cut points must
// also be ordered, which the schema alone cannot express.
func ValidateNodeDocument(payload []byte) error {
	schema, err := loadShotNodeSchema()
	if err != nil {
		return fmt.Errorf("load shot node schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return &ValidationError{Resource: ResourceNodes, Err: err}
	}
	if err := schema.Validate(inst); err != nil {
		return &ValidationError{Resource: ResourceNodes, Err: err}
	}
	var doc NodeDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &ValidationError{Resource: ResourceNodes, Err: err}
	}
	if doc.Properties.CutOut < doc.Properties.CutIn {
		return &ValidationError{
			Resource: ResourceNodes,
			Err:      fmt.Errorf("cut_out %d precedes cut_in %d", doc.Properties.CutOut, doc.Properties.CutIn),
		}
	}
	return nil
}
