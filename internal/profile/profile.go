// Package profile loads conversion profiles: JSON files bundling the
// OCR knobs (DPI, language, segmentation) and batch options, validated
// against a schema before use so a typo fails the run up front.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ocrkit/pdf2txt/constants"
	"github.com/ocrkit/pdf2txt/internal/common"
)

// Profile mirrors the JSON profile file. Zero values mean "not set";
// callers overlay it on the environment configuration.
type Profile struct {
	DPI        int      `json:"dpi,omitempty"`
	Language   string   `json:"language,omitempty"`
	PSM        int      `json:"psm,omitempty"`
	OEM        int      `json:"oem,omitempty"`
	MaxPages   int      `json:"max_pages,omitempty"`
	Extensions []string `json:"extensions,omitempty"`
	NoFilter   bool     `json:"no_filter,omitempty"`
	Workers    int      `json:"workers,omitempty"`
}

// buildSchema returns the profile JSON Schema (draft 2020-12 subset) as a
// generic map.
func buildSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"dpi":       map[string]any{"type": "integer", "minimum": 72, "maximum": 1200},
			"language":  map[string]any{"type": "string", "minLength": 3},
			"psm":       map[string]any{"type": "integer", "minimum": 0, "maximum": 13},
			"oem":       map[string]any{"type": "integer", "minimum": 0, "maximum": 3},
			"max_pages": map[string]any{"type": "integer", "minimum": 0},
			"extensions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "minLength": 1},
			},
			"no_filter": map[string]any{"type": "boolean"},
			"workers":   map[string]any{"type": "integer", "minimum": 1, "maximum": 64},
		},
	}
}

// Load reads and validates a profile file. Validation failures are setup
// errors: the run must not start on a half-understood profile.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read profile: %v", common.ErrSetup, err)
	}
	if err := validate(buildSchema(), data); err != nil {
		return nil, common.NewAppError("PROFILE_INVALID", fmt.Sprintf("profile %s: %v", path, err), common.ErrSetup)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse profile: %v", common.ErrSetup, err)
	}
	for _, e := range p.Extensions {
		if constants.MapExtToFormat(e) == "" {
			return nil, fmt.Errorf("%w: profile %s: unsupported extension %q", common.ErrSetup, path, e)
		}
	}
	return &p, nil
}

// ExtensionSet returns the profile's extensions as a normalized set, or
// nil when the profile does not restrict them.
func (p *Profile) ExtensionSet() map[string]struct{} {
	if len(p.Extensions) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(p.Extensions))
	for _, e := range p.Extensions {
		out[constants.NormalizeExt(e)] = struct{}{}
	}
	return out
}

// validate checks data against schemaMap.
func validate(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("profile.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
