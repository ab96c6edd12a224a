package handler

import (
	"fmt"

	"github.com/nodeflow/engine/internal/engineerr"
)

// ValidateConfig checks a resolved node config against a
// JSON-Schema-shaped map produced by Handler.ConfigSchema(). Only the
// subset §9's additive config-schema-validation note calls for is
// implemented: top-level "required" and "properties[].type" for the
// JSON primitive types. A nil or empty schema always passes. This is
// deliberately not a general JSON Schema validator — see DESIGN.md for
// why the engine reaches for this instead of a dependency here.
func ValidateConfig(schema map[string]interface{}, config map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := config[field]; !present {
				return engineerr.New(engineerr.KindValidation, fmt.Sprintf("missing required config field %q", field))
			}
		}
	} else if requiredAny, ok := schema["required"].([]interface{}); ok {
		for _, f := range requiredAny {
			field, _ := f.(string)
			if field == "" {
				continue
			}
			if _, present := config[field]; !present {
				return engineerr.New(engineerr.KindValidation, fmt.Sprintf("missing required config field %q", field))
			}
		}
	}

	props, _ := schema["properties"].(map[string]interface{})
	for field, rawSpec := range props {
		spec, ok := rawSpec.(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := spec["type"].(string)
		if wantType == "" {
			continue
		}
		val, present := config[field]
		if !present {
			continue
		}
		if !matchesJSONType(val, wantType) {
			return engineerr.New(engineerr.KindValidation, fmt.Sprintf("config field %q: expected %s", field, wantType))
		}
	}
	return nil
}

func matchesJSONType(v interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}
