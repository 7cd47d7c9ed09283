package generation

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageValidating  Stage = "validating"
	StageTranslating Stage = "translating"
	StageAllocating  Stage = "allocating"
	StageGenerating  Stage = "generating"
	StageSanitizing  Stage = "sanitizing"
	StagePersisting  Stage = "persisting"
	StageLookingUp   Stage = "looking_up"
)

// Code is the stable public classification of a failure.
type Code string

const (
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeAPINameRequired   Code = "API_NAME_REQUIRED"
	CodeInvalidJSON       Code = "INVALID_JSON"
	CodeNotFound          Code = "API_NOT_FOUND"
	CodeGenerationFailed  Code = "GENERATION_FAILED"
	CodeParseFailed       Code = "GENERATION_PARSE_FAILED"
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	CodeNameUnavailable   Code = "NAME_UNAVAILABLE"
	CodeLookupFailed      Code = "LOOKUP_FAILED"
)

const (
	MessageAPINameRequired = "API name is required"
	MessageFieldsRequired  = "Description, numRows, and columns are required."
	MessageColumnsNotArray = "Columns must be a non-empty array."
	MessageInvalidJSON     = "Request body must be valid JSON."
	MessageNumRowsInvalid  = "numRows must be a positive integer."
)

var publicMessages = map[Code]string{
	CodeNotFound:          "API not found",
	CodeGenerationFailed:  "Error generating data",
	CodeParseFailed:       "Error parsing JSON",
	CodePersistenceFailed: "Error generating data",
	CodeNameUnavailable:   "Error generating data",
	CodeLookupFailed:      "Error fetching data",
}

// PublicMessage is the caller-facing text for a non-validation code.
func (c Code) PublicMessage() string {
	if message, ok := publicMessages[c]; ok {
		return message
	}
	return "Internal error"
}

// ValidationError is a request problem the caller can fix.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(code Code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}

// Error is a failure at one stage of the workflow. Err carries the detail and
// is only meant for logs.
type Error struct {
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func stageError(stage Stage, code Code, err error) *Error {
	return &Error{Stage: stage, Code: code, Err: err}
}

// CodeOf classifies any error returned by Service.
func CodeOf(err error) Code {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code
	}
	var stageErr *Error
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	return ""
}
