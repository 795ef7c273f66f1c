package validator

import (
	"errors"
	"fmt"

	"github.com/ridoystarlord/tplgen/generator"
	"github.com/ridoystarlord/tplgen/macro"
	"github.com/ridoystarlord/tplgen/schema"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Type     string `json:"type"`
	Table    string `json:"table,omitempty"`
	Field    string `json:"field,omitempty"`
	Template string `json:"template,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}
}

func (r *ValidationResult) add(e ValidationError) {
	switch e.Severity {
	case "error":
		r.Errors = append(r.Errors, e)
	case "warning":
		r.Warnings = append(r.Warnings, e)
	default:
		r.Info = append(r.Info, e)
	}
}

// Merge appends the findings of other and recomputes validity.
func (r *ValidationResult) Merge(other *ValidationResult) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Info = append(r.Info, other.Info...)
	r.Valid = len(r.Errors) == 0
}

// ValidateSchema checks the bound schema before generation. Broken
// invariants are errors; tables the templates can only partly use are
// warnings.
func ValidateSchema(tables []schema.Table) *ValidationResult {
	result := newResult()

	if len(tables) == 0 {
		result.add(ValidationError{
			Type:     "no_tables",
			Message:  "Schema contains no tables; table templates will produce nothing",
			Severity: "warning",
		})
	}

	tableNames := make(map[string]bool, len(tables))
	for _, table := range tables {
		if tableNames[table.Name] {
			result.add(ValidationError{
				Type:     "duplicate_table",
				Table:    table.Name,
				Message:  fmt.Sprintf("Duplicate table name '%s'", table.Name),
				Severity: "error",
			})
			continue
		}
		tableNames[table.Name] = true
		validateTable(table, result)
	}

	result.add(ValidationError{
		Type:     "summary",
		Message:  fmt.Sprintf("%d tables, %d fields", len(tables), countFields(tables)),
		Severity: "info",
	})

	result.Valid = len(result.Errors) == 0
	return result
}

func validateTable(table schema.Table, result *ValidationResult) {
	if err := validateName(table.Name); err != nil {
		result.add(ValidationError{
			Type:     "table_name",
			Table:    table.Name,
			Message:  fmt.Sprintf("table %s", err),
			Severity: "error",
		})
	}

	if len(table.Fields) == 0 {
		result.add(ValidationError{
			Type:     "no_fields",
			Table:    table.Name,
			Message:  fmt.Sprintf("Table '%s' has no fields", table.Name),
			Severity: "error",
		})
		return
	}

	if err := table.Validate(); err != nil {
		result.add(ValidationError{
			Type:     "table_invariant",
			Table:    table.Name,
			Message:  err.Error(),
			Severity: "error",
		})
	}

	fieldNames := make(map[string]bool, len(table.Fields))
	for _, field := range table.Fields {
		if fieldNames[field.Name] {
			result.add(ValidationError{
				Type:     "duplicate_field",
				Table:    table.Name,
				Field:    field.Name,
				Message:  fmt.Sprintf("Duplicate field name '%s' in table '%s'", field.Name, table.Name),
				Severity: "error",
			})
			continue
		}
		fieldNames[field.Name] = true

		if err := validateName(field.Name); err != nil {
			result.add(ValidationError{
				Type:     "field_name",
				Table:    table.Name,
				Field:    field.Name,
				Message:  fmt.Sprintf("field %s", err),
				Severity: "error",
			})
		}
		if field.Type < schema.TypeBoolean || field.Type > schema.TypeImage {
			result.add(ValidationError{
				Type:     "type_code",
				Table:    table.Name,
				Field:    field.Name,
				Message:  fmt.Sprintf("Field '%s' has unknown type code %d", field.Name, int(field.Type)),
				Severity: "error",
			})
		}
		if field.PrimaryKey && field.Searchable {
			result.add(ValidationError{
				Type:     "searchable_key",
				Table:    table.Name,
				Field:    field.Name,
				Message:  fmt.Sprintf("Primary key '%s' is also searchable", field.Name),
				Severity: "info",
			})
		}
	}

	if _, ok := table.PrimaryKey(); !ok {
		result.add(ValidationError{
			Type:     "no_primary_key",
			Table:    table.Name,
			Message:  fmt.Sprintf("Table '%s' has no primary key; {filekeyname} and {item.primarykey} will fail", table.Name),
			Severity: "warning",
		})
	}
	if len(table.SearchableFields()) == 0 {
		result.add(ValidationError{
			Type:     "no_searchable_fields",
			Table:    table.Name,
			Message:  fmt.Sprintf("Table '%s' has no searchable fields; {for s} loops will be empty", table.Name),
			Severity: "warning",
		})
	}
}

// validateName validates identifier format
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if len(name) > 63 {
		return fmt.Errorf("name '%s' is too long (max 63 characters)", name)
	}

	for i, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '_') {
			return fmt.Errorf("name '%s' contains invalid character '%c'", name, char)
		}
		if i == 0 && char >= '0' && char <= '9' {
			return fmt.Errorf("name '%s' starts with a digit", name)
		}
	}

	return nil
}

func countFields(tables []schema.Table) int {
	n := 0
	for _, t := range tables {
		n += len(t.Fields)
	}
	return n
}

// ValidateTemplates parses every expanded template, and its output name
// pattern, without binding any table.
func ValidateTemplates(templates []generator.TemplateFile) *ValidationResult {
	result := newResult()

	names := make(map[string]bool, len(templates))
	tableTemplates := 0
	for _, tf := range templates {
		if names[tf.FileName] {
			result.add(ValidationError{
				Type:     "duplicate_template",
				Template: tf.FileName,
				Message:  fmt.Sprintf("Duplicate template '%s'", tf.FileName),
				Severity: "error",
			})
			continue
		}
		names[tf.FileName] = true

		if !tf.Type.Valid() {
			result.add(ValidationError{
				Type:     "file_type",
				Template: tf.FileName,
				Message:  fmt.Sprintf("Template '%s' has unknown type '%s'", tf.FileName, tf.Type),
				Severity: "error",
			})
			continue
		}
		if tf.Type == generator.TableFile {
			tableTemplates++
		}
		if !tf.Type.Expanded() {
			continue
		}

		if _, err := macro.Parse(tf.FileName, tf.Content); err != nil {
			result.add(templateError(tf.FileName, err))
		}
		if tf.OutputName != "" {
			if _, err := macro.Parse(tf.FileName+" (output)", tf.OutputName); err != nil {
				result.add(templateError(tf.FileName, err))
			}
		}
	}

	if tableTemplates == 0 {
		result.add(ValidationError{
			Type:     "no_table_templates",
			Message:  "No db_table_file templates; nothing is generated per table",
			Severity: "warning",
		})
	}

	result.add(ValidationError{
		Type:     "summary",
		Message:  fmt.Sprintf("%d templates, %d per table", len(templates), tableTemplates),
		Severity: "info",
	})

	result.Valid = len(result.Errors) == 0
	return result
}

func templateError(name string, err error) ValidationError {
	ve := ValidationError{
		Type:     "template",
		Template: name,
		Message:  err.Error(),
		Severity: "error",
	}

	var lexErr *macro.LexError
	var parseErr *macro.ParseError
	switch {
	case errors.As(err, &lexErr):
		ve.Type = "unterminated_directive"
		ve.Line, ve.Column = lexErr.Pos.Line, lexErr.Pos.Column
	case errors.As(err, &parseErr):
		ve.Type = typeName(parseErr.Kind)
		ve.Line, ve.Column = parseErr.Pos.Line, parseErr.Pos.Column
	}
	return ve
}

func typeName(kind macro.ParseErrorKind) string {
	switch kind {
	case macro.MismatchedClose:
		return "mismatched_close"
	case macro.UnknownDirective:
		return "unknown_directive"
	case macro.UnexpectedBranch:
		return "unexpected_branch"
	case macro.BadArgument:
		return "bad_argument"
	default:
		return "template"
	}
}
