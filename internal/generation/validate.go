package generation

import (
	"fmt"
	"math"
	"strings"

	"github.com/apigen/apigen/internal/dataset"
)

// ValidateAPIName checks the apiName query parameter.
func ValidateAPIName(apiName string) (string, error) {
	apiName = strings.TrimSpace(apiName)
	if apiName == "" {
		return "", newValidationError(CodeAPINameRequired, MessageAPINameRequired)
	}
	return apiName, nil
}

// ValidateRequest checks a create body. maxRows <= 0 disables the upper bound.
// Column titles are passed to the model as given.
func ValidateRequest(req dataset.GenerationRequest, maxRows int) error {
	if req.Description == nil || strings.TrimSpace(*req.Description) == "" || req.NumRows == nil || *req.NumRows == 0 || req.Columns == nil {
		return newValidationError(CodeValidationFailed, MessageFieldsRequired)
	}
	if len(req.Columns) == 0 {
		return newValidationError(CodeValidationFailed, MessageColumnsNotArray)
	}
	rows := *req.NumRows
	if rows < 1 || rows > math.MaxInt32 || rows != math.Trunc(rows) {
		return newValidationError(CodeValidationFailed, MessageNumRowsInvalid)
	}
	if maxRows > 0 && rows > float64(maxRows) {
		return newValidationError(CodeValidationFailed, fmt.Sprintf("numRows must not exceed %d.", maxRows))
	}
	return nil
}
