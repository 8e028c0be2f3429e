package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a set of resources
type Definition struct {
	Resources map[string]ResourceDefinition `yaml:"resources"`
}

// ResourceDefinition is the YAML form of one resource
type ResourceDefinition struct {
	Table         string                            `yaml:"table"`
	PrimaryKey    string                            `yaml:"primary_key"`
	Discriminator string                            `yaml:"discriminator"`
	Documentation string                            `yaml:"doc"`
	Fields        map[string]FieldDefinition        `yaml:"fields"`
	Relationships map[string]RelationshipDefinition `yaml:"relationships"`
}

// FieldDefinition is the YAML form of a field. It also accepts the short
// form `title: string?`.
type FieldDefinition struct {
	Type   string `yaml:"type"`
	Column string `yaml:"column"`
}

// UnmarshalYAML accepts either a scalar type or a mapping
func (f *FieldDefinition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		f.Type = value.Value
		return nil
	}
	type plain FieldDefinition
	return value.Decode((*plain)(f))
}

// RelationshipDefinition is the YAML form of a relationship
type RelationshipDefinition struct {
	Type           string `yaml:"type"`
	Target         string `yaml:"target"`
	ForeignKey     string `yaml:"foreign_key"`
	JoinTable      string `yaml:"join_table"`
	AssociationKey string `yaml:"association_key"`
	Nullable       bool   `yaml:"nullable"`
}

// LoadFile reads a YAML schema definition and returns a validated registry
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Load(data)
}

// Load parses a YAML schema definition and returns a validated registry
func Load(data []byte) (*Registry, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse schema definition: %w", err)
	}

	registry := NewRegistry()

	names := make([]string, 0, len(def.Resources))
	for name := range def.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		resource, err := buildResource(name, def.Resources[name])
		if err != nil {
			return nil, err
		}
		if err := registry.Register(resource); err != nil {
			return nil, err
		}
	}

	if err := registry.ValidateAll(); err != nil {
		return nil, err
	}
	return registry, nil
}

func buildResource(name string, def ResourceDefinition) (*ResourceSchema, error) {
	resource := NewResourceSchema(name)
	resource.Documentation = def.Documentation
	resource.Discriminator = def.Discriminator
	if def.Table != "" {
		resource.TableName = def.Table
	}
	if def.PrimaryKey != "" {
		resource.PrimaryKey = def.PrimaryKey
	}

	for fieldName, fieldDef := range def.Fields {
		typeSpec, err := parseTypeSpec(fieldDef.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, fieldName, err)
		}
		resource.Fields[fieldName] = &Field{
			Name:   fieldName,
			Column: fieldDef.Column,
			Type:   typeSpec,
		}
	}

	for relName, relDef := range def.Relationships {
		relType, err := ParseRelationType(relDef.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, relName, err)
		}
		resource.Relationships[relName] = &Relationship{
			Type:           relType,
			TargetResource: relDef.Target,
			FieldName:      relName,
			Nullable:       relDef.Nullable,
			ForeignKey:     relDef.ForeignKey,
			JoinTable:      relDef.JoinTable,
			AssociationKey: relDef.AssociationKey,
		}
	}

	return resource, nil
}

// parseTypeSpec parses "string", "string?" or "string!"
func parseTypeSpec(s string) (*TypeSpec, error) {
	spec := &TypeSpec{}
	switch {
	case len(s) > 0 && s[len(s)-1] == '?':
		spec.Nullable = true
		s = s[:len(s)-1]
	case len(s) > 0 && s[len(s)-1] == '!':
		s = s[:len(s)-1]
	}
	base, err := ParsePrimitiveType(s)
	if err != nil {
		return nil, err
	}
	spec.BaseType = base
	return spec, nil
}
