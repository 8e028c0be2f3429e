package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a schema validation error with context
type ValidationError struct {
	Resource string
	Field    string
	Message  string
	Hint     string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	if e.Resource != "" {
		b.WriteString(e.Resource)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
		b.WriteString(": ")
	}

	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// SchemaValidator validates resource schemas
type SchemaValidator struct {
	schemas map[string]*ResourceSchema
	errors  []*ValidationError
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		schemas: make(map[string]*ResourceSchema),
		errors:  make([]*ValidationError, 0),
	}
}

// ValidateStructural validates a single resource schema without cross-resource checks.
// This is used during registration to allow forward references.
func (v *SchemaValidator) ValidateStructural(schema *ResourceSchema) error {
	v.errors = make([]*ValidationError, 0)

	if schema.Name == "" {
		v.errors = append(v.errors, &ValidationError{Message: "resource name is required"})
	}
	if schema.TableName == "" {
		v.errors = append(v.errors, &ValidationError{Resource: schema.Name, Message: "table name is required"})
	}

	for name := range schema.Relationships {
		if _, clash := schema.Fields[name]; clash {
			v.errors = append(v.errors, &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "name is used by both a field and a relationship",
				Hint:     "Property paths must resolve to exactly one member",
			})
		}
	}

	for name, field := range schema.Fields {
		if field.Type == nil {
			v.errors = append(v.errors, &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "field has no type",
			})
		}
	}

	return v.result()
}

// Validate validates a single resource schema against all registered schemas
func (v *SchemaValidator) Validate(schema *ResourceSchema, registry map[string]*ResourceSchema) error {
	if err := v.ValidateStructural(schema); err != nil {
		return err
	}
	v.schemas = registry
	v.validateRelationships(schema)
	return v.result()
}

// validateRelationships checks that every association resolves to exactly
// one registered target and carries the keys needed to join it
func (v *SchemaValidator) validateRelationships(schema *ResourceSchema) {
	names := make([]string, 0, len(schema.Relationships))
	for name := range schema.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rel := schema.Relationships[name]
		if _, exists := v.schemas[rel.TargetResource]; !exists {
			v.errors = append(v.errors, &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  fmt.Sprintf("references unknown resource %s", rel.TargetResource),
				Hint:     "Ensure the target resource is defined",
			})
			continue
		}

		if rel.ForeignKey == "" {
			v.errors = append(v.errors, &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  fmt.Sprintf("%s relationship requires a foreign key", rel.Type),
			})
		}

		if rel.Type == RelationshipHasManyThrough && (rel.JoinTable == "" || rel.AssociationKey == "") {
			v.errors = append(v.errors, &ValidationError{
				Resource: schema.Name,
				Field:    name,
				Message:  "has_many_through relationship requires join_table and association_key",
			})
		}
	}
}

func (v *SchemaValidator) result() error {
	if len(v.errors) == 0 {
		return nil
	}
	errMsgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		errMsgs = append(errMsgs, err.Error())
	}
	return fmt.Errorf("schema validation failed with %d errors:\n%s",
		len(v.errors), strings.Join(errMsgs, "\n"))
}

// Errors returns the errors collected by the last validation
func (v *SchemaValidator) Errors() []*ValidationError {
	return v.errors
}
