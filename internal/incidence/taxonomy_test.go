package incidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSkeletonFile(t *testing.T) {
	path := writeTaxonomy(t, `
- name: Constitutional Law
  children:
    - name: Fundamental Rights
    - name: State Organization
- name: Administrative Law
`)

	nodes, err := LoadSkeletonFile(path)
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, "Constitutional Law", nodes[0].Name)
	require.Len(t, nodes[0].Children, 2)
	assert.Equal(t, "Fundamental Rights", nodes[0].Children[0].Name)
	assert.Equal(t, "Administrative Law", nodes[1].Name)
	assert.Empty(t, nodes[1].Children)
}

func TestLoadSkeletonFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSkeletonFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeTaxonomy(t, "{not yaml: [")
		_, err := LoadSkeletonFile(path)
		assert.Error(t, err)
	})

	t.Run("empty name", func(t *testing.T) {
		path := writeTaxonomy(t, "- name: \"\"\n")
		_, err := LoadSkeletonFile(path)
		assert.ErrorContains(t, err, "empty name")
	})

	t.Run("duplicate sibling", func(t *testing.T) {
		path := writeTaxonomy(t, "- name: Math\n- name: Math\n")
		_, err := LoadSkeletonFile(path)
		assert.ErrorContains(t, err, "duplicate")
	})
}
