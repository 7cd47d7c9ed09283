package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

const datasetRoot = "datasets"

// BuildDatasetObjectPath returns datasets/<apiName>/<fileName>. The API name is
// path-escaped so any stored name maps to exactly one object key.
func BuildDatasetObjectPath(apiName, fileName string) (string, error) {
	component, err := datasetComponent(apiName)
	if err != nil {
		return "", err
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || strings.Contains(fileName, "/") {
		return "", fmt.Errorf("invalid file name: %q", fileName)
	}
	return path.Join(datasetRoot, component, fileName), nil
}

func datasetComponent(apiName string) (string, error) {
	apiName = strings.TrimSpace(apiName)
	if apiName == "" {
		return "", fmt.Errorf("api name is required")
	}
	escaped := url.PathEscape(apiName)
	if escaped == "." || escaped == ".." {
		return "", fmt.Errorf("invalid api name: %q", apiName)
	}
	return escaped, nil
}
