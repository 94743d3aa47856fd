package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/autoyard/garageapi/internal/core/domain"
)

var quotedNamePattern = regexp.MustCompile(`'([^']+)'`)

// PayloadValidator checks create payloads against each resource's JSON
// Schema. Schemas come from the static catalog, so they are compiled once
// at construction.
type PayloadValidator struct {
	compiled map[string]*santhosh.Schema
}

func NewPayloadValidator(catalog *domain.Catalog) (*PayloadValidator, error) {
	v := &PayloadValidator{compiled: make(map[string]*santhosh.Schema)}
	for _, res := range catalog.All() {
		if len(res.Schema) == 0 {
			continue
		}
		sch, err := compileSchema(res.Schema)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", res.Name, err)
		}
		v.compiled[res.Name] = sch
	}
	return v, nil
}

// Validate returns a 400 *domain.Error when data violates the resource
// schema. Missing required properties get the MISSING_REQUIRED_FIELDS code
// with the field names; everything else maps to VALIDATION_FAILED.
func (v *PayloadValidator) Validate(res domain.Resource, data json.RawMessage) error {
	if !json.Valid(data) {
		return domain.NewError(http.StatusBadRequest, "INVALID_PAYLOAD", "payload must be valid json")
	}
	sch, ok := v.compiled[res.Name]
	if !ok {
		return nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return domain.NewError(http.StatusBadRequest, "INVALID_PAYLOAD", "payload must be valid json")
	}

	err := sch.Validate(decoded)
	if err == nil {
		return nil
	}

	var ve *santhosh.ValidationError
	if errors.As(err, &ve) {
		leaves := leafCauses(ve)
		if missing := missingFields(leaves); len(missing) > 0 {
			return domain.MissingFieldsError(missing)
		}
		msgs := make([]string, 0, len(leaves))
		for _, leaf := range leaves {
			msgs = append(msgs, leaf.Error())
		}
		return domain.NewError(http.StatusBadRequest, "VALIDATION_FAILED", strings.Join(msgs, "; "))
	}
	return domain.NewError(http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
}

func compileSchema(schemaJSON json.RawMessage) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func leafCauses(ve *santhosh.ValidationError) []*santhosh.ValidationError {
	if len(ve.Causes) == 0 {
		return []*santhosh.ValidationError{ve}
	}
	var leaves []*santhosh.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

// missingFields pulls the property names out of leaves produced by the
// `required` keyword. Matching on the keyword location keeps this stable
// against wording changes in the library's messages.
func missingFields(leaves []*santhosh.ValidationError) []string {
	var fields []string
	for _, leaf := range leaves {
		if !strings.HasSuffix(leaf.KeywordLocation, "/required") {
			continue
		}
		for _, m := range quotedNamePattern.FindAllStringSubmatch(leaf.Message, -1) {
			fields = append(fields, m[1])
		}
	}
	return fields
}
