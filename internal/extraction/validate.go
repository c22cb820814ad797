package extraction

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/benvon/smart-coach/internal/models"
)

// FieldType is the expected type of a schema field
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldList    FieldType = "list"
)

// FieldRule constrains one field of extracted data
type FieldRule struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Min      *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern  string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// CustomRule is a pluggable whole-record check. Issues from rules marked
// Warning are reported as warnings instead of errors.
type CustomRule struct {
	Name    string
	Warning bool
	Check   func(data map[string]any) []models.FieldIssue
}

// Schema describes the expected shape of extracted data
type Schema struct {
	Fields      []FieldRule
	CustomRules []CustomRule
	// Strict reports fields missing from Fields as warnings
	Strict bool
}

// ValidateData checks data against schema and itemizes errors and warnings
func ValidateData(data map[string]any, schema Schema) models.DataValidationResult {
	result := models.DataValidationResult{
		Errors:   []models.FieldIssue{},
		Warnings: []models.FieldIssue{},
	}

	known := make(map[string]bool, len(schema.Fields))
	for _, rule := range schema.Fields {
		known[rule.Name] = true
		value, present := data[rule.Name]
		if !present || value == nil {
			if rule.Required {
				result.Errors = append(result.Errors, issue(rule.Name, "required", "is required"))
			}
			continue
		}
		result.Errors = append(result.Errors, checkField(rule, value)...)
	}

	if schema.Strict {
		var unknown []string
		for name := range data {
			if !known[name] {
				unknown = append(unknown, name)
			}
		}
		sort.Strings(unknown)
		for _, name := range unknown {
			result.Warnings = append(result.Warnings, issue(name, "unknown_field", "field is not declared in schema"))
		}
	}

	for _, rule := range schema.CustomRules {
		if rule.Check == nil {
			continue
		}
		issues := rule.Check(data)
		for i := range issues {
			if issues[i].Rule == "" {
				issues[i].Rule = rule.Name
			}
		}
		if rule.Warning {
			result.Warnings = append(result.Warnings, issues...)
		} else {
			result.Errors = append(result.Errors, issues...)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func checkField(rule FieldRule, value any) []models.FieldIssue {
	var issues []models.FieldIssue
	switch rule.Type {
	case FieldString:
		s, ok := value.(string)
		if !ok {
			return []models.FieldIssue{issue(rule.Name, "type", fmt.Sprintf("expected string, got %T", value))}
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return []models.FieldIssue{issue(rule.Name, "pattern", "invalid pattern: "+err.Error())}
			}
			if !re.MatchString(s) {
				issues = append(issues, issue(rule.Name, "pattern", fmt.Sprintf("%q does not match %s", s, rule.Pattern)))
			}
		}
	case FieldNumber, FieldInteger:
		f, ok := toFloat(value)
		if !ok {
			return []models.FieldIssue{issue(rule.Name, "type", fmt.Sprintf("expected %s, got %T", rule.Type, value))}
		}
		if rule.Type == FieldInteger && f != float64(int64(f)) {
			issues = append(issues, issue(rule.Name, "type", fmt.Sprintf("expected integer, got %v", f)))
		}
		if rule.Min != nil && f < *rule.Min {
			issues = append(issues, issue(rule.Name, "min", fmt.Sprintf("%v is below minimum %v", f, *rule.Min)))
		}
		if rule.Max != nil && f > *rule.Max {
			issues = append(issues, issue(rule.Name, "max", fmt.Sprintf("%v is above maximum %v", f, *rule.Max)))
		}
	case FieldBoolean:
		if _, ok := value.(bool); !ok {
			issues = append(issues, issue(rule.Name, "type", fmt.Sprintf("expected boolean, got %T", value)))
		}
	case FieldList:
		switch v := value.(type) {
		case []any:
			issues = append(issues, checkLength(rule, len(v))...)
		case []string:
			issues = append(issues, checkLength(rule, len(v))...)
		default:
			issues = append(issues, issue(rule.Name, "type", fmt.Sprintf("expected list, got %T", value)))
		}
	}
	return issues
}

func checkLength(rule FieldRule, n int) []models.FieldIssue {
	var issues []models.FieldIssue
	if rule.Min != nil && float64(n) < *rule.Min {
		issues = append(issues, issue(rule.Name, "min", fmt.Sprintf("list has %d items, minimum %v", n, *rule.Min)))
	}
	if rule.Max != nil && float64(n) > *rule.Max {
		issues = append(issues, issue(rule.Name, "max", fmt.Sprintf("list has %d items, maximum %v", n, *rule.Max)))
	}
	return issues
}

func issue(field, rule, message string) models.FieldIssue {
	return models.FieldIssue{Field: field, Rule: rule, Message: message}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
