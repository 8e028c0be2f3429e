package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/criteria/internal/orm/schema"
	"github.com/conduit-lang/criteria/internal/testutil"
)

func newResource(name string) *schema.ResourceSchema {
	r := schema.NewResourceSchema(name)
	r.Fields["id"] = &schema.Field{Name: "id", Type: &schema.TypeSpec{BaseType: schema.TypeInt}}
	return r
}

func TestRegistryRegister(t *testing.T) {
	registry := schema.NewRegistry()

	require.NoError(t, registry.Register(newResource("Tag")))
	assert.True(t, registry.Exists("Tag"))
	assert.Equal(t, 1, registry.Count())

	err := registry.Register(newResource("Tag"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsFieldRelationshipClash(t *testing.T) {
	registry := schema.NewRegistry()

	tag := newResource("Tag")
	tag.Fields["parent"] = &schema.Field{Name: "parent", Type: &schema.TypeSpec{BaseType: schema.TypeInt}}
	tag.Relationships["parent"] = &schema.Relationship{
		Type:           schema.RelationshipBelongsTo,
		TargetResource: "Tag",
		ForeignKey:     "parent_tag_id",
	}

	err := registry.Register(tag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both a field and a relationship")
	assert.False(t, registry.Exists("Tag"))
}

func TestRegistryValidateAll(t *testing.T) {
	t.Run("unknown target", func(t *testing.T) {
		registry := schema.NewRegistry()
		node := newResource("Node")
		node.Relationships["nodeType"] = &schema.Relationship{
			Type:           schema.RelationshipBelongsTo,
			TargetResource: "NodeType",
			ForeignKey:     "node_type_id",
		}
		require.NoError(t, registry.Register(node))

		err := registry.ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "references unknown resource NodeType")
	})

	t.Run("through without join table", func(t *testing.T) {
		registry := schema.NewRegistry()
		node := newResource("Node")
		node.Relationships["tags"] = &schema.Relationship{
			Type:           schema.RelationshipHasManyThrough,
			TargetResource: "Tag",
			ForeignKey:     "node_id",
		}
		require.NoError(t, registry.Register(node))
		require.NoError(t, registry.Register(newResource("Tag")))

		err := registry.ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "join_table and association_key")
	})

	t.Run("fixture is valid", func(t *testing.T) {
		assert.NoError(t, testutil.Schemas(t).ValidateAll())
	})
}

func TestRegistryTarget(t *testing.T) {
	registry := testutil.Schemas(t)
	node, err := registry.Lookup("Node")
	require.NoError(t, err)

	rel, target, err := registry.Target(node, "tags")
	require.NoError(t, err)
	assert.Equal(t, schema.RelationshipHasManyThrough, rel.Type)
	assert.True(t, rel.IsToMany())
	assert.Equal(t, "Tag", target.Name)

	_, _, err = registry.Target(node, "documents")
	assert.ErrorIs(t, err, schema.ErrUnknownProperty)

	_, err = registry.Lookup("Blog")
	assert.ErrorIs(t, err, schema.ErrUnknownResource)
}

func TestRegistryList(t *testing.T) {
	registry := testutil.Schemas(t)

	assert.Equal(t, []string{
		"Attribute", "Document", "Node", "NodeType", "NodesSources",
		"NodesSourcesDocuments", "NodesTags", "NodesToNodes", "Tag", "Translation",
	}, registry.List())
}
