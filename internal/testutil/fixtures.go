// Package testutil provides the content graph fixtures shared by package tests.
package testutil

import (
	_ "embed"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/criteria/internal/orm/contenttype"
	"github.com/conduit-lang/criteria/internal/orm/schema"
)

//go:embed content_schema.yaml
var contentSchema []byte

//go:embed content_types.yaml
var contentTypes []byte

// SchemaYAML returns the raw fixture schema definition
func SchemaYAML() []byte {
	return contentSchema
}

// ContentTypesYAML returns the raw fixture content types
func ContentTypesYAML() []byte {
	return contentTypes
}

// Schemas returns the fixture content graph: NodesSources (polymorphic),
// Node, NodeType, Translation, Tag, NodesTags, NodesToNodes, Document,
// NodesSourcesDocuments and Attribute.
func Schemas(t testing.TB) *schema.Registry {
	t.Helper()
	registry, err := schema.Load(contentSchema)
	require.NoError(t, err)
	return registry
}

// ContentTypes returns a registry with Page, Article and Offer (reachable)
// and Menu, MenuLink (not reachable)
func ContentTypes(t testing.TB) *contenttype.Registry {
	t.Helper()
	snap, err := contenttype.Load(contentTypes, "yaml")
	require.NoError(t, err)
	return contenttype.NewRegistry(snap, nil)
}

// FixedClock returns a clock frozen at the given instant
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
