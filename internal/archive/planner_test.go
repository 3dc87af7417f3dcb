package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"rtranslator/internal/minecraft"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t1.Add(24 * time.Hour)
)

func TestPlanSelectsLatestBuildPerPair(t *testing.T) {
	src := &fakeSource{
		resource: &Resource{
			Loaders:      []string{"fabric", "forge", "neoforge"},
			GameVersions: []string{"1.20.1", "23w31a", "1.19.4"},
		},
		builds: []Build{
			{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}, Published: t1,
				Files: []BuildFile{{URL: "a", Size: 1}, {URL: "b", Size: 2, Primary: true}}},
			{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}, Published: t2,
				Files: []BuildFile{{URL: "c", Size: 3}}},
			{Loaders: []string{"forge"}, GameVersions: []string{"1.19.4"}, Published: t1},
			{Loaders: []string{"forge"}, GameVersions: []string{"1.19.4", "1.20.1"}, Published: t0,
				Files: []BuildFile{{URL: "d", Size: 4, Primary: true}, {URL: "e", Size: 5}}},
			{Loaders: []string{"neoforge"}, GameVersions: []string{"1.20.1"}, Published: t2,
				Files: []BuildFile{{URL: "f", Size: 6}}},
			{Loaders: []string{"fabric"}, GameVersions: []string{"23w31a"}, Published: t2,
				Files: []BuildFile{{URL: "snapshot", Size: 7}}},
		},
	}

	planner := NewPlanner(&seqPaths{dir: t.TempDir()})
	plans, err := planner.Plan(context.Background(), src, "mod")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, "c", plans[0].URL)
	assert.Equal(t, uint64(3), plans[0].Size)
	assert.Equal(t, minecraft.Fabric, plans[0].Loader)
	assert.Equal(t, "1.20.1", plans[0].GameVersion.String())

	assert.Equal(t, "d", plans[1].URL)
	assert.Equal(t, minecraft.Forge, plans[1].Loader)
	assert.Equal(t, "1.20.1", plans[1].GameVersion.String())

	assert.NotEqual(t, plans[0].Path, plans[1].Path)
}

func TestPlanPrefersPrimaryFile(t *testing.T) {
	src := &fakeSource{
		resource: &Resource{Loaders: []string{"quilt"}, GameVersions: []string{"1.20"}},
		builds: []Build{
			{Loaders: []string{"quilt"}, GameVersions: []string{"1.20"}, Published: t0,
				Files: []BuildFile{{URL: "sources"}, {URL: "main", Primary: true}}},
		},
	}

	plans, err := NewPlanner(&seqPaths{dir: t.TempDir()}).Plan(context.Background(), src, "mod")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "main", plans[0].URL)
	assert.Equal(t, "1.20.0", plans[0].GameVersion.String())
}

func TestPlanTieKeepsFirstBuild(t *testing.T) {
	src := &fakeSource{
		resource: &Resource{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}},
		builds: []Build{
			{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}, Published: t1, Files: []BuildFile{{URL: "first"}}},
			{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}, Published: t1, Files: []BuildFile{{URL: "second"}}},
		},
	}

	for i := 0; i < 5; i++ {
		plans, err := NewPlanner(&seqPaths{dir: t.TempDir()}).Plan(context.Background(), src, "mod")
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "first", plans[0].URL)
	}
}

func TestPlanCollapsesDuplicatePairs(t *testing.T) {
	src := &fakeSource{
		resource: &Resource{
			Loaders:      []string{"fabric", "Fabric"},
			GameVersions: []string{"1.20.1", "1.20.1"},
		},
		builds: []Build{
			{Loaders: []string{"fabric"}, GameVersions: []string{"1.20.1"}, Published: t0, Files: []BuildFile{{URL: "x"}}},
		},
	}

	paths := &seqPaths{dir: t.TempDir()}
	plans, err := NewPlanner(paths).Plan(context.Background(), src, "mod")
	require.NoError(t, err)
	assert.Len(t, plans, 1)
	assert.Equal(t, 1, paths.n)
}

func TestPlanNoStableVersions(t *testing.T) {
	src := &fakeSource{
		resource: &Resource{Loaders: []string{"fabric"}, GameVersions: []string{"23w31a", "1.20-pre1"}},
		builds: []Build{
			{Loaders: []string{"fabric"}, GameVersions: []string{"23w31a"}, Published: t0, Files: []BuildFile{{URL: "x"}}},
		},
	}

	plans, err := NewPlanner(&seqPaths{dir: t.TempDir()}).Plan(context.Background(), src, "mod")
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanProviderErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewPlanner(&seqPaths{}).Plan(context.Background(), &fakeSource{resErr: boom}, "mod")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindPlanning, KindOf(err))

	_, err = NewPlanner(&seqPaths{}).Plan(context.Background(), &fakeSource{resource: &Resource{}, buildsErr: boom}, "mod")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindPlanning, KindOf(err))
}

func TestSourcesDispatch(t *testing.T) {
	modrinth := &fakeSource{}
	sources := Sources{Modrinth: modrinth}

	src, err := sources.For(Modrinth)
	require.NoError(t, err)
	assert.Same(t, modrinth, src)

	_, err = sources.For(CurseForge)
	assert.ErrorIs(t, err, ErrProviderNotImplemented)

	_, err = sources.For(Provider("planetminecraft"))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("Modrinth")
	require.NoError(t, err)
	assert.Equal(t, Modrinth, p)

	p, err = ParseProvider("curseforge")
	require.NoError(t, err)
	assert.Equal(t, CurseForge, p)

	_, err = ParseProvider("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Equal(t, "modrinth-sodium", TaskID(Modrinth, "sodium"))
}
