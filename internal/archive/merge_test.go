package archive

import (
	"testing"

	"rtranslator/internal/minecraft"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plan(t *testing.T, loader minecraft.Loader, version string) Plan {
	t.Helper()
	v, err := minecraft.ToSemantic(version)
	require.NoError(t, err)
	return Plan{Loader: loader, GameVersion: v}
}

func TestMergeLastSourceWinsAndUnionsContext(t *testing.T) {
	sources := []MergeSource{
		{Map: &LanguageMap{Namespace: "a", Entries: map[string]string{"k1": "old"}}, Plan: plan(t, minecraft.Fabric, "1.19")},
		{Map: &LanguageMap{Namespace: "b", Entries: map[string]string{"k1": "new"}}, Plan: plan(t, minecraft.Forge, "1.20")},
	}

	entries := Merge(sources, nil)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "k1", e.Key)
	assert.Equal(t, "new", e.Value)
	assert.Equal(t, []string{"a", "b"}, e.Namespaces)
	assert.Equal(t, []string{"1.19.0", "1.20.0"}, e.GameVersions)
	assert.Equal(t, []string{"fabric", "forge"}, e.Loaders)
}

func TestMergeKeepsKeysFromSingleSources(t *testing.T) {
	sources := []MergeSource{
		{Map: &LanguageMap{Namespace: "mod", Entries: map[string]string{"b": "B", "shared": "one"}}, Plan: plan(t, minecraft.Fabric, "1.20.1")},
		{Map: &LanguageMap{Namespace: "mod", Entries: map[string]string{"a": "A", "shared": "two"}}, Plan: plan(t, minecraft.Fabric, "1.20.1")},
	}

	var progress []float64
	entries := Merge(sources, func(f float64) { progress = append(progress, f) })

	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "shared", entries[2].Key)
	assert.Equal(t, "two", entries[2].Value)
	assert.Equal(t, []string{"mod"}, entries[2].Namespaces)
	assert.Equal(t, []string{"1.20.1"}, entries[2].GameVersions)

	require.Len(t, progress, 3)
	assert.InDelta(t, 1.0/3, progress[0], 1e-9)
	assert.InDelta(t, 1.0, progress[2], 1e-9)
}

func TestMergeEmpty(t *testing.T) {
	called := false
	entries := Merge(nil, func(float64) { called = true })
	assert.Empty(t, entries)
	assert.False(t, called)
}
