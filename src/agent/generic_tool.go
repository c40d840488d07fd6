package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/go-playground/validator/v10"
	"github.com/swaggest/jsonschema-go"
)

var inputValidator = validator.New()

// GenericToolHandler is a type-safe handler function
type GenericToolHandler[TInput any, TOutput any] func(ctx context.Context, caller *Caller, input TInput) (TOutput, error)

// GenericTool is a tool whose parameter schema is reflected from TInput.
// Input fields use `json`, `required`, `description` and `default` tags for the
// schema and `validate` tags for value constraints.
type GenericTool[TInput any, TOutput any] struct {
	Type        string
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Handler     GenericToolHandler[TInput, TOutput]
}

func (gt *GenericTool[TInput, TOutput]) GetType() string                   { return gt.Type }
func (gt *GenericTool[TInput, TOutput]) GetName() string                   { return gt.Name }
func (gt *GenericTool[TInput, TOutput]) GetDescription() string            { return gt.Description }
func (gt *GenericTool[TInput, TOutput]) GetParameters() *jsonschema.Schema { return gt.Schema }

// ValidateArguments decodes raw into TInput and runs the required and
// validate-tag checks.
func (gt *GenericTool[TInput, TOutput]) ValidateArguments(raw json.RawMessage) error {
	_, err := gt.decode(raw)
	return err
}

func (gt *GenericTool[TInput, TOutput]) decode(raw json.RawMessage) (TInput, error) {
	var input TInput
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, &ArgumentError{Tool: gt.Name, Err: fmt.Errorf("failed to parse input: %w", err)}
	}
	if err := gt.validateRequired(input); err != nil {
		return input, &ArgumentError{Tool: gt.Name, Err: err}
	}
	if reflect.Indirect(reflect.ValueOf(input)).Kind() == reflect.Struct {
		if err := inputValidator.Struct(input); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				e := verrs[0]
				return input, &ArgumentError{Tool: gt.Name, Err: fmt.Errorf("field '%s' failed '%s' check", e.Field(), e.Tag())}
			}
			return input, &ArgumentError{Tool: gt.Name, Err: err}
		}
	}
	return input, nil
}

// Execute runs the tool. Argument and handler failures are reported as error
// responses rather than Go errors so the model can react to them.
func (gt *GenericTool[TInput, TOutput]) Execute(ctx context.Context, caller *Caller, call *aisdk.ToolCall) (*aisdk.ToolResponse, error) {
	input, err := gt.decode(call.Function.RawArguments())
	if err != nil {
		return ErrorResponse(err), nil
	}

	output, err := gt.Handler(ctx, caller, input)
	if err != nil {
		return ErrorResponse(err), nil
	}

	content, err := json.Marshal(output)
	if err != nil {
		return ErrorResponse(fmt.Errorf("failed to marshal result: %w", err)), nil
	}

	return &aisdk.ToolResponse{
		Type:    "success",
		Content: content,
	}, nil
}

// ErrorResponse wraps err as a tool error response.
func ErrorResponse(err error) *aisdk.ToolResponse {
	return &aisdk.ToolResponse{
		Type:    "error",
		Content: []byte(err.Error()),
		IsError: true,
	}
}

// validateRequired checks that required fields are not empty
func (gt *GenericTool[TInput, TOutput]) validateRequired(input TInput) error {
	if gt.Schema == nil || len(gt.Schema.Required) == 0 {
		return nil
	}

	val := reflect.Indirect(reflect.ValueOf(input))
	if !val.IsValid() || val.Kind() != reflect.Struct {
		return nil
	}
	typ := val.Type()

	for _, requiredField := range gt.Schema.Required {
		found := false
		for i := 0; i < typ.NumField(); i++ {
			fieldName := strings.Split(typ.Field(i).Tag.Get("json"), ",")[0]
			if fieldName != requiredField {
				continue
			}
			found = true
			if val.Field(i).IsZero() {
				return fmt.Errorf("required field '%s' is missing", requiredField)
			}
			break
		}
		if !found {
			return fmt.Errorf("required field '%s' not found in struct", requiredField)
		}
	}
	return nil
}

// NewGenericTool creates a tool with a schema reflected from TInput.
func NewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput]) (*GenericTool[TInput, TOutput], error) {
	var input TInput
	inputType := reflect.TypeOf(input)
	if inputType == nil {
		return nil, fmt.Errorf("tool input type must be a struct")
	}
	if inputType.Kind() == reflect.Ptr {
		inputType = inputType.Elem()
	}
	if inputType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool input type must be a struct, got %s", inputType.Kind())
	}

	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(input)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	return &GenericTool[TInput, TOutput]{
		Type:        "function",
		Name:        name,
		Description: description,
		Schema:      &schema,
		Handler:     handler,
	}, nil
}

// MustNewGenericTool creates a new generic tool and panics on error
func MustNewGenericTool[TInput any, TOutput any](name, description string, handler GenericToolHandler[TInput, TOutput]) *GenericTool[TInput, TOutput] {
	tool, err := NewGenericTool(name, description, handler)
	if err != nil {
		panic(fmt.Sprintf("failed to create generic tool: %v", err))
	}
	return tool
}

var (
	_ Tool              = (*GenericTool[struct{}, struct{}])(nil)
	_ ArgumentValidator = (*GenericTool[struct{}, struct{}])(nil)
)
