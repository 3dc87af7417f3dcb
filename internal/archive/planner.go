package archive

import (
	"context"
	"slices"

	"rtranslator/internal/minecraft"

	"github.com/Masterminds/semver/v3"
)

// Plan is one archive to fetch: the newest build for a (loader, game version) pair.
type Plan struct {
	URL         string
	Size        uint64
	Loader      minecraft.Loader
	GameVersion *semver.Version
	Path        string
}

// PathAllocator hands out unique destination paths.
type PathAllocator interface {
	NewPath() string
}

// Planner turns a resource's published builds into a download plan.
type Planner struct {
	paths PathAllocator
}

func NewPlanner(paths PathAllocator) *Planner {
	return &Planner{paths: paths}
}

type planKey struct {
	url     string
	loader  minecraft.Loader
	version string
}

// Plan lists one archive per (loader, stable game version) pair the resource
// declares and that has a build with at least one file. Unresolvable loaders
// are dropped. Entries sharing the same (url, loader, version) are collapsed.
func (p *Planner) Plan(ctx context.Context, src Source, identifier string) ([]Plan, error) {
	res, err := src.Resource(ctx, identifier)
	if err != nil {
		return nil, newError(KindPlanning, "resource "+identifier, err)
	}
	builds, err := src.Builds(ctx, identifier)
	if err != nil {
		return nil, newError(KindPlanning, "builds "+identifier, err)
	}

	var plans []Plan
	seen := make(map[planKey]bool)
	for _, loaderName := range res.Loaders {
		loader, ok := minecraft.ParseLoader(loaderName)
		if !ok {
			continue
		}
		for _, gameVersion := range res.GameVersions {
			if !minecraft.IsStable(gameVersion) {
				continue
			}
			sv, err := minecraft.ToSemantic(gameVersion)
			if err != nil {
				continue
			}

			build := latestBuild(builds, loader, gameVersion)
			if build == nil {
				continue
			}
			file, ok := pickFile(build)
			if !ok {
				continue
			}

			key := planKey{url: file.URL, loader: loader, version: sv.String()}
			if seen[key] {
				continue
			}
			seen[key] = true

			plans = append(plans, Plan{
				URL:         file.URL,
				Size:        file.Size,
				Loader:      loader,
				GameVersion: sv,
				Path:        p.paths.NewPath(),
			})
		}
	}
	return plans, nil
}

// latestBuild returns the build advertising both loader and gameVersion with
// the greatest publish time. Ties keep the earliest build in provider order.
func latestBuild(builds []Build, loader minecraft.Loader, gameVersion string) *Build {
	var best *Build
	for i := range builds {
		b := &builds[i]
		if !hasLoader(b.Loaders, loader) || !slices.Contains(b.GameVersions, gameVersion) {
			continue
		}
		if best == nil || b.Published.After(best.Published) {
			best = b
		}
	}
	return best
}

// pickFile prefers the primary file, else the first one.
func pickFile(b *Build) (BuildFile, bool) {
	if len(b.Files) == 0 {
		return BuildFile{}, false
	}
	for _, f := range b.Files {
		if f.Primary {
			return f, true
		}
	}
	return b.Files[0], true
}

func hasLoader(names []string, want minecraft.Loader) bool {
	for _, n := range names {
		if l, ok := minecraft.ParseLoader(n); ok && l == want {
			return true
		}
	}
	return false
}
