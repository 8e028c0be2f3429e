package contenttype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/criteria/internal/orm/schema"
)

// fieldsSuffix names the resource mapping a content type's own table
const fieldsSuffix = "Fields"

// Resources derives the metadata of the snapshot's content types over base
// and returns base plus the derived resources.
//
// Every content type becomes a subtype resource named after it: the parent's
// fields and relationships, restricted to rows carrying its discriminator.
// A content type with a table and fields also gets a <Name>Fields resource
// over that table, joined has_one on id under the association <Name>. The
// association is an extension of both the subtype and the parent, so
// "readingTime" resolves on Article directly and on NodesSources as long as
// no other content type declares it. Parent fields win over content-type
// fields of the same name.
func (s *Snapshot) Resources(base map[string]*schema.ResourceSchema) (*schema.Registry, error) {
	polymorphic := make([]string, 0, 1)
	for name, r := range base {
		if r.IsPolymorphic() {
			polymorphic = append(polymorphic, name)
		}
	}
	sort.Strings(polymorphic)

	parents := make(map[string]*schema.ResourceSchema)
	derived := make([]*schema.ResourceSchema, 0, 2*len(s.shapes))

	for _, shape := range s.shapes {
		parentName, err := parentOf(shape, base, polymorphic)
		if err != nil {
			return nil, err
		}
		if parentName == "" {
			continue
		}
		if _, taken := base[shape.Name]; taken {
			return nil, fmt.Errorf("content type %s clashes with the resource of the same name", shape.Name)
		}

		original := base[parentName]
		parent, ok := parents[parentName]
		if !ok {
			parent = cloneResource(original)
			parents[parentName] = parent
		}

		subtype := cloneResource(original)
		subtype.Name = shape.Name
		subtype.Documentation = fmt.Sprintf("%s rows of content type %s", parentName, shape.Name)
		subtype.Parent = parentName
		subtype.DiscriminatorValue = shape.Discriminator

		if shape.Table != "" && len(shape.Fields) > 0 {
			if original.HasField(shape.Name) || original.HasRelationship(shape.Name) {
				return nil, fmt.Errorf("content type %s clashes with property %s.%s", shape.Name, parentName, shape.Name)
			}
			fields := fieldsResource(shape)
			if _, taken := base[fields.Name]; taken {
				return nil, fmt.Errorf("content type %s: resource %s is already defined", shape.Name, fields.Name)
			}

			rel := &schema.Relationship{
				Type:           schema.RelationshipHasOne,
				TargetResource: fields.Name,
				FieldName:      shape.Name,
				Nullable:       true,
				ForeignKey:     fields.PrimaryKey,
			}
			parent.Relationships[shape.Name] = rel
			parent.Extensions = append(parent.Extensions, shape.Name)
			subtype.Relationships[shape.Name] = rel
			subtype.Extensions = []string{shape.Name}

			derived = append(derived, fields)
		}
		derived = append(derived, subtype)
	}

	registry := schema.NewRegistry()
	names := make([]string, 0, len(base))
	for name := range base {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := base[name]
		if parent, ok := parents[name]; ok {
			r = parent
		}
		if err := registry.Register(r); err != nil {
			return nil, err
		}
	}
	for _, r := range derived {
		if err := registry.Register(r); err != nil {
			return nil, fmt.Errorf("content type resources: %w", err)
		}
	}
	if err := registry.ValidateAll(); err != nil {
		return nil, err
	}
	return registry, nil
}

// parentOf returns the polymorphic resource shape rows belong to, or "" when
// the schema has none and shape names none
func parentOf(shape RowShape, base map[string]*schema.ResourceSchema, polymorphic []string) (string, error) {
	if shape.Resource != "" {
		r, ok := base[shape.Resource]
		if !ok {
			return "", fmt.Errorf("content type %s: %w: %s", shape.Name, schema.ErrUnknownResource, shape.Resource)
		}
		if !r.IsPolymorphic() {
			return "", fmt.Errorf("content type %s: resource %s has no discriminator", shape.Name, shape.Resource)
		}
		return shape.Resource, nil
	}

	switch len(polymorphic) {
	case 0:
		return "", nil
	case 1:
		return polymorphic[0], nil
	default:
		return "", fmt.Errorf("content type %s must name its resource, one of %s",
			shape.Name, strings.Join(polymorphic, ", "))
	}
}

func fieldsResource(shape RowShape) *schema.ResourceSchema {
	r := schema.NewResourceSchema(shape.Name + fieldsSuffix)
	r.TableName = shape.Table
	r.Documentation = fmt.Sprintf("Own fields of content type %s", shape.Name)

	for _, f := range shape.Fields {
		r.Fields[f.Name] = &schema.Field{
			Name: f.Name,
			Type: &schema.TypeSpec{BaseType: fieldType(f), Nullable: true},
		}
	}
	r.Fields[r.PrimaryKey] = &schema.Field{
		Name: r.PrimaryKey,
		Type: &schema.TypeSpec{BaseType: schema.TypeInt},
	}
	return r
}

func fieldType(f FieldSpec) schema.PrimitiveType {
	switch {
	case f.Boolean:
		return schema.TypeBool
	case f.Date:
		return schema.TypeTimestamp
	case f.Numeric:
		return schema.TypeFloat
	case f.Geo:
		return schema.TypeGeo
	default:
		return schema.TypeString
	}
}

func cloneResource(r *schema.ResourceSchema) *schema.ResourceSchema {
	clone := *r
	clone.Fields = make(map[string]*schema.Field, len(r.Fields))
	for name, f := range r.Fields {
		clone.Fields[name] = f
	}
	clone.Relationships = make(map[string]*schema.Relationship, len(r.Relationships))
	for name, rel := range r.Relationships {
		clone.Relationships[name] = rel
	}
	clone.Extensions = append([]string(nil), r.Extensions...)
	return &clone
}
