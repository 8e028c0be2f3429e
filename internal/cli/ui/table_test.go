package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Name", "Discriminator")
	table.AddRow("Page", "page")
	table.AddRow("MenuLink", "menulink")
	table.Render()

	expected := strings.Join([]string{
		"Name      Discriminator",
		"────────  " + strings.Repeat("─", 13),
		"Page      page",
		"MenuLink  menulink",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, 2, table.Len())
}

func TestTableMissingCells(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "A", "B", "C")
	table.AddRow("x")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "x     ", lines[2])
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("resource", "NodesSources")
	table.AddRow("joins", "2")
	table.Render()

	assert.Equal(t, "resource: NodesSources\njoins:    2\n", buf.String())
}
