package scenario

import "fmt"

// ErrorCode identifies a fatal scenario-loading failure. These surface
// to scenario authors and operators, never to the conversation loop.
type ErrorCode string

const (
	CodeRegistryMissing      ErrorCode = "REGISTRY_MISSING"
	CodeRegistryLoadError    ErrorCode = "REGISTRY_LOAD_ERROR"
	CodeScenarioFileNotFound ErrorCode = "SCENARIO_FILE_NOT_FOUND"
	CodeScenarioIDMismatch   ErrorCode = "SCENARIO_ID_MISMATCH"
	CodeSchemaInvalid        ErrorCode = "SCHEMA_INVALID"
	CodeExitTargetMissing    ErrorCode = "EXIT_TARGET_MISSING"
	CodeObjLocationMissing   ErrorCode = "OBJ_LOCATION_MISSING"
	CodeCharLocationMissing  ErrorCode = "CHAR_LOCATION_MISSING"
)

// SchemaValidationError is the structured form of every fatal scenario
// error: a stable code, a human message, and key/value details.
type SchemaValidationError struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func newError(code ErrorCode, details map[string]string, format string, args ...any) *SchemaValidationError {
	return &SchemaValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}
