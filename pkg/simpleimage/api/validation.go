package api

import (
	"fmt"
	"strings"

	"github.com/tendant/simple-image/pkg/simpleimage"
)

// splitRef splits "{id}.{format}" on the last dot. A ref without a dot names
// the original.
func splitRef(ref string) (id, format string, err error) {
	id = ref
	if i := strings.LastIndex(ref, "."); i >= 0 {
		id, format = ref[:i], ref[i+1:]
		if format == "" {
			return "", "", &simpleimage.ValidationError{Problems: []string{"format is required after '.'"}}
		}
	}
	if strings.TrimSpace(id) == "" {
		return "", "", &simpleimage.ValidationError{Problems: []string{"image id is required"}}
	}
	return id, format, nil
}

func validateIDs(ids []string, max int) error {
	var problems []string
	if len(ids) == 0 {
		problems = append(problems, "at least one id is required")
	}
	if max > 0 && len(ids) > max {
		problems = append(problems, fmt.Sprintf("too many ids requested: %d, maximum is %d", len(ids), max))
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			problems = append(problems, fmt.Sprintf("ids[%d] is empty", i))
		}
	}
	if len(problems) > 0 {
		return &simpleimage.ValidationError{Problems: problems}
	}
	return nil
}

// validateSource enforces that exactly one of url and id is given.
func validateSource(url, id string) error {
	if (url == "") == (id == "") {
		return &simpleimage.ValidationError{Problems: []string{"either 'id' or 'url' should be provided"}}
	}
	return nil
}

func validateFormat(format string) (string, error) {
	if format == "" {
		return "", &simpleimage.ValidationError{Problems: []string{"format query parameter is required"}}
	}
	normalized := simpleimage.NormalizeFormat(format)
	if !simpleimage.IsSupportedFormat(normalized) {
		return "", &simpleimage.UnsupportedFormatError{Format: format}
	}
	return normalized, nil
}
