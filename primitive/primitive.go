// Package primitive implements regex/format validation for the 20 FHIR
// primitive types.
package primitive

import (
	"regexp"
	"strconv"
	"time"
)

// Names lists the 20 FHIR primitive type names, matching the original
// PRIMITIVE_TYPES table exactly (including xhtml).
var Names = map[string]bool{
	"boolean": true, "integer": true, "string": true, "decimal": true,
	"uri": true, "url": true, "canonical": true, "base64Binary": true,
	"instant": true, "date": true, "dateTime": true, "time": true,
	"code": true, "oid": true, "id": true, "markdown": true,
	"unsignedInt": true, "positiveInt": true, "uuid": true, "xhtml": true,
}

// IsPrimitiveType reports whether name is one of the 20 FHIR primitive types.
func IsPrimitiveType(name string) bool { return Names[name] }

var patterns = map[string]*regexp.Regexp{
	"id":           regexp.MustCompile(`^[A-Za-z0-9\-.]{1,64}$`),
	"code":         regexp.MustCompile(`^[^\s]+( [^\s]+)*$`),
	"oid":          regexp.MustCompile(`^urn:oid:[0-2](\.(0|[1-9][0-9]*))+$`),
	"uuid":         regexp.MustCompile(`^urn:uuid:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	"date":         regexp.MustCompile(`^(\d{4})(-(0[1-9]|1[012])(-(0[1-9]|[12]\d|3[01]))?)?$`),
	"dateTime":     regexp.MustCompile(`^(\d{4})(-(0[1-9]|1[012])(-(0[1-9]|[12]\d|3[01])(T([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?(Z|[+-]((0\d|1[0-3]):[0-5]\d|14:00))?)?)?)?$`),
	"instant":      regexp.MustCompile(`^(\d{4})-(0[1-9]|1[012])-(0[1-9]|[12]\d|3[01])T([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?(Z|[+-]((0\d|1[0-3]):[0-5]\d|14:00))$`),
	"time":         regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d:([0-5]\d|60)(\.\d+)?$`),
	"base64Binary": regexp.MustCompile(`^(\s*[0-9a-zA-Z+/=]*\s*)*$`),
	"positiveInt":  regexp.MustCompile(`^[1-9][0-9]*$`),
	"unsignedInt":  regexp.MustCompile(`^[0-9]+$`),
	"decimal":      regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`),
	"integer":      regexp.MustCompile(`^[+-]?[0-9]+$`),
}

// schemeWarningTypes are the types for which a non-http(s) URI scheme is a
// warning rather than an error (see the resolved Open Question on URL
// scheme mismatches).
var schemeWarningTypes = map[string]bool{"uri": true, "url": true, "canonical": true}

// CheckResult is the outcome of validating one scalar value against an
// expected primitive type.
type CheckResult struct {
	Valid        bool
	SchemeWarn   bool // value matched format but used a non-http(s) scheme
}

// CheckFormat validates a scalar value's JSON representation against the
// expected FHIR primitive type's format rules. value is the value as
// decoded by encoding/json (bool, float64, string, json.Number, nil).
func CheckFormat(expectedType string, value any) CheckResult {
	switch expectedType {
	case "boolean":
		_, ok := value.(bool)
		return CheckResult{Valid: ok}
	case "integer", "unsignedInt", "positiveInt":
		return CheckResult{Valid: isWholeNumber(value) && matchesPattern(expectedType, value)}
	case "decimal":
		return CheckResult{Valid: isNumber(value)}
	case "uri", "url", "canonical":
		s, ok := value.(string)
		if !ok {
			return CheckResult{Valid: false}
		}
		return CheckResult{Valid: true, SchemeWarn: schemeWarningTypes[expectedType] && !hasHTTPScheme(s)}
	default:
		s, ok := value.(string)
		if !ok {
			return CheckResult{Valid: IsPrimitiveType(expectedType) == false}
		}
		if re, ok := patterns[expectedType]; ok {
			if expectedType == "date" && len(s) == 10 && re.MatchString(s) {
				// full dates must also exist on the calendar (no 2020-02-30)
				_, err := time.Parse("2006-01-02", s)
				return CheckResult{Valid: err == nil}
			}
			return CheckResult{Valid: re.MatchString(s)}
		}
		return CheckResult{Valid: true}
	}
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	default:
		return false
	}
}

func isWholeNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == float64(int64(n))
	case int, int64:
		return true
	default:
		return false
	}
}

func matchesPattern(expectedType string, value any) bool {
	re, ok := patterns[expectedType]
	if !ok {
		return true
	}
	var s string
	switch n := value.(type) {
	case float64:
		s = strconv.FormatInt(int64(n), 10)
	case int64:
		s = strconv.FormatInt(n, 10)
	case int:
		s = strconv.Itoa(n)
	default:
		return false
	}
	return re.MatchString(s)
}

func hasHTTPScheme(s string) bool {
	return len(s) >= 7 && (s[:7] == "http://" || (len(s) >= 8 && s[:8] == "https://"))
}
