package chatloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findSchemaObject returns the first map in schemaMap that has "properties" (root or inside $defs).
// Used by tests to assert on additionalProperties, required, etc.
func findSchemaObject(schemaMap map[string]any) map[string]any {
	if schemaMap == nil {
		return nil
	}
	if schemaMap["properties"] != nil {
		return schemaMap
	}
	if defs, ok := schemaMap["$defs"].(map[string]any); ok {
		for _, v := range defs {
			if o, ok := v.(map[string]any); ok && o["properties"] != nil {
				return o
			}
		}
	}
	return nil
}

func TestGenerateSchema_Simple(t *testing.T) {
	type Simple struct {
		Location string `json:"location" description:"City name"`
		Unit     string `json:"unit,omitempty" description:"Temperature unit"`
	}
	m, resolved, err := generateSchema[Simple](false)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.NotNil(t, m)
	obj := findSchemaObject(m)
	require.NotNil(t, obj, "expected root or $defs with properties")
	props, ok := obj["properties"].(map[string]any)
	require.True(t, ok, "expected properties map")
	assert.Contains(t, props, "location")
	assert.Contains(t, props, "unit")
}

func TestGenerateSchema_TagEnrichment(t *testing.T) {
	type Args struct {
		City string `json:"city" description:"City name"`
		Unit string `json:"unit,omitempty" enum:"celsius, fahrenheit"`
	}
	m, _, err := generateSchema[Args](false)
	require.NoError(t, err)
	obj := findSchemaObject(m)
	require.NotNil(t, obj)
	props := obj["properties"].(map[string]any)
	city := props["city"].(map[string]any)
	assert.Equal(t, "City name", city["description"])
	unit := props["unit"].(map[string]any)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])
}

func TestGenerateSchema_StrictMode(t *testing.T) {
	type Nested struct {
		A string `json:"a"`
	}
	type Root struct {
		X string `json:"x"`
		N Nested `json:"n"`
	}
	m, _, err := generateSchema[Root](true)
	require.NoError(t, err)
	require.NotNil(t, m)
	// All objects should have additionalProperties: false and full required list.
	var check func(map[string]any)
	check = func(m map[string]any) {
		if m == nil {
			return
		}
		if _, hasProps := m["properties"]; hasProps {
			v, ok := m["additionalProperties"]
			assert.True(t, ok, "expected additionalProperties in object schema")
			assert.Equal(t, false, v)
			assert.NotEmpty(t, m["required"])
		}
		for _, val := range m {
			switch v := val.(type) {
			case map[string]any:
				check(v)
			case []any:
				for _, item := range v {
					if m2, ok := item.(map[string]any); ok {
						check(m2)
					}
				}
			}
		}
	}
	check(m)
}

func TestGenerateSchema_UnsupportedType(t *testing.T) {
	type Bad struct {
		C chan int `json:"c"`
	}
	_, _, err := generateSchema[Bad](false)
	require.Error(t, err, "channel fields cannot be described as JSON Schema")
}

func TestGenerateSchema_ValidatorRejectsBadPayload(t *testing.T) {
	type Args struct {
		N int `json:"n"`
	}
	_, resolved, err := generateSchema[Args](false)
	require.NoError(t, err)
	require.NoError(t, resolved.Validate(map[string]any{"n": float64(3)}))
	require.Error(t, resolved.Validate(map[string]any{"n": "three"}))
}

func TestObjectSchema(t *testing.T) {
	m := ObjectSchema(
		Param{Name: "city", Type: "string", Description: "City name", Required: true},
		Param{Name: "unit", Type: "string", Enum: []string{"celsius", "fahrenheit"}},
	)
	assert.Equal(t, "object", m["type"])
	props := m["properties"].(map[string]any)
	city := props["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	assert.Equal(t, "City name", city["description"])
	unit := props["unit"].(map[string]any)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])
	assert.Equal(t, []any{"city"}, m["required"])

	compiled, err := compileRawSchema(m)
	require.NoError(t, err)
	require.NoError(t, compiled.Validate(map[string]any{"city": "Oslo"}))
	require.Error(t, compiled.Validate(map[string]any{"unit": "celsius"}), "missing required city")
}

func TestObjectSchema_NoParams(t *testing.T) {
	m := ObjectSchema()
	assert.Equal(t, "object", m["type"])
	assert.Empty(t, m["properties"])
	_, hasRequired := m["required"]
	assert.False(t, hasRequired)
}

func TestStripSchemaIDs(t *testing.T) {
	m := map[string]any{
		"$id":        "https://example.com/root",
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"id": "inner", "type": "string"}},
	}
	stripSchemaIDs(m)
	_, hasID := m["$id"]
	assert.False(t, hasID)
	inner := m["properties"].(map[string]any)["x"].(map[string]any)
	_, hasInner := inner["id"]
	assert.False(t, hasInner)
}
