package validation

import (
	"fmt"
	"github.com/skybi/impds-proxy/internal/api/schema"
	"net/http"
	"strconv"
)

var (
	errQueryParameterMissing = func(name string) *schema.Error {
		return &schema.Error{
			Type:    "validation.query.parameter.missing",
			Message: fmt.Sprintf("The query parameter '%s' is required but was not present in the request.", name),
			Details: map[string]any{
				"parameter": name,
			},
		}
	}
	errQueryParameterInvalidType = func(name, value, expectedType string) *schema.Error {
		return &schema.Error{
			Type:    "validation.query.parameter.invalidType",
			Message: fmt.Sprintf("The query parameter '%s' ('%s') could not be assigned to the required type (%s).", name, value, expectedType),
			Details: map[string]any{
				"parameter":     name,
				"value":         value,
				"expected_type": expectedType,
			},
		}
	}
	errQueryParameterNumberOutOfRange = func(name string, value, min, max int64) *schema.Error {
		comparison := ""
		if value < min {
			comparison = fmt.Sprintf("%d [given] < %d [min]", value, min)
		} else if value > max {
			comparison = fmt.Sprintf("%d [given] > %d [max]", value, max)
		}

		return &schema.Error{
			Type:    "validation.query.parameter.number.outOfRange",
			Message: fmt.Sprintf("The query parameter '%s' is out of the required range (%s).", name, comparison),
			Details: map[string]any{
				"parameter": name,
				"value":     value,
				"min":       min,
				"max":       max,
			},
		}
	}
	errQueryParameterTooLong = func(name string, length, max int) *schema.Error {
		return &schema.Error{
			Type:    "validation.query.parameter.string.tooLong",
			Message: fmt.Sprintf("The query parameter '%s' is too long (%d [given] > %d [max]).", name, length, max),
			Details: map[string]any{
				"parameter":  name,
				"length":     length,
				"max_length": max,
			},
		}
	}
	errQueryParameterNotAllowed = func(name, value string) *schema.Error {
		return &schema.Error{
			Type:    "validation.query.parameter.notAllowed",
			Message: fmt.Sprintf("The query parameter '%s' has an unsupported value ('%s').", name, value),
			Details: map[string]any{
				"parameter": name,
				"value":     value,
			},
		}
	}
)

// QueryNumber extracts and validates an integer value out of the query parameters of the given request
func QueryNumber(request *http.Request, key string, required bool, def, min, max int64) (int64, *schema.Error) {
	// Extract the raw string value
	value := request.URL.Query().Get(key)
	if value == "" {
		if required {
			return 0, errQueryParameterMissing(key)
		}
		return def, nil
	}

	// Try to parse the value
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errQueryParameterInvalidType(key, value, "number")
	}

	// Check if the parsed value is in the required range
	if parsed < min || parsed > max {
		return 0, errQueryParameterNumberOutOfRange(key, parsed, min, max)
	}

	return parsed, nil
}

// QueryString extracts a string value out of the query parameters of the given request and checks its length.
// An empty value counts as missing.
func QueryString(request *http.Request, key string, required bool, maxLength int) (string, *schema.Error) {
	value := request.URL.Query().Get(key)
	if value == "" {
		if required {
			return "", errQueryParameterMissing(key)
		}
		return "", nil
	}
	if maxLength > 0 && len(value) > maxLength {
		return "", errQueryParameterTooLong(key, len(value), maxLength)
	}
	return value, nil
}

// QueryEnum extracts a string value out of the query parameters of the given request and checks it using the given
// parse function
func QueryEnum[T any](request *http.Request, key string, parse func(string) (T, bool)) (*T, *schema.Error) {
	value := request.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	parsed, ok := parse(value)
	if !ok {
		return nil, errQueryParameterNotAllowed(key, value)
	}
	return &parsed, nil
}
