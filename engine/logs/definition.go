package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
)

// Handler executes a tool with the arguments the LLM supplied.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes one log tool. The input schema is reflected from
// ArgsPrototype.
type Definition struct {
	Name          string
	Description   string
	ArgsPrototype any
	Handler       Handler
}

// Tool is a Definition with its schema resolved. It satisfies the
// orchestrator's RegistryTool contract.
type Tool struct {
	def    Definition
	schema map[string]any
}

func NewTool(def Definition) (*Tool, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, errors.New("tool name is required")
	}
	if def.Handler == nil {
		return nil, fmt.Errorf("tool %s: handler is required", def.Name)
	}
	schema, err := reflectSchema(def.ArgsPrototype)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", def.Name, err)
	}
	return &Tool{def: def, schema: schema}, nil
}

func (t *Tool) Name() string        { return t.def.Name }
func (t *Tool) Description() string { return t.def.Description }

func (t *Tool) ParameterSchema() map[string]any {
	out, err := cloneSchema(t.schema)
	if err != nil {
		return t.schema
	}
	return out
}

func (t *Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.def.Handler(ctx, args)
}

var schemaReflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	AllowAdditionalProperties:  false,
	DoNotReference:             true,
	ExpandedStruct:             true,
}

func reflectSchema(prototype any) (map[string]any, error) {
	if prototype == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(schemaReflector.Reflect(prototype))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func cloneSchema(schema map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var argsValidator = newArgsValidator()

func newArgsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs decodes the loosely typed arguments into T and validates them.
// Unknown keys are rejected so typos surface to the LLM instead of being
// silently ignored.
func decodeArgs[T any](payload map[string]any) (T, error) {
	var value T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &value,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return value, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return value, invalidArgument(fmt.Errorf("decode arguments: %w", err), nil)
	}
	if err := argsValidator.Struct(value); err != nil {
		return value, invalidArgument(describeValidation(err), nil)
	}
	return value, nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
