package archive

import (
	"maps"
	"slices"
)

// MergeSource pairs an extracted language map with the plan it came from.
type MergeSource struct {
	Map  *LanguageMap
	Plan Plan
}

// Entry is a canonical text entry with every context it was observed in.
type Entry struct {
	Key          string
	Value        string
	Namespaces   []string
	GameVersions []string
	Loaders      []string
}

type entryAcc struct {
	value        string
	namespaces   map[string]struct{}
	gameVersions map[string]struct{}
	loaders      map[string]struct{}
}

// Merge combines sources in order. A key's value comes from the last source
// containing it; its namespaces, game versions and loaders are the union over
// all sources containing it. Entries are returned sorted by key and
// onProgress fires once per emitted entry.
func Merge(sources []MergeSource, onProgress func(float64)) []Entry {
	acc := make(map[string]*entryAcc)
	for _, src := range sources {
		if src.Map == nil {
			continue
		}
		version := ""
		if src.Plan.GameVersion != nil {
			version = src.Plan.GameVersion.String()
		}
		loader := src.Plan.Loader.String()

		for key, value := range src.Map.Entries {
			a, ok := acc[key]
			if !ok {
				a = &entryAcc{
					namespaces:   make(map[string]struct{}),
					gameVersions: make(map[string]struct{}),
					loaders:      make(map[string]struct{}),
				}
				acc[key] = a
			}
			a.value = value
			a.namespaces[src.Map.Namespace] = struct{}{}
			if version != "" {
				a.gameVersions[version] = struct{}{}
			}
			a.loaders[loader] = struct{}{}
		}
	}

	keys := slices.Sorted(maps.Keys(acc))
	entries := make([]Entry, 0, len(keys))
	for i, key := range keys {
		a := acc[key]
		entries = append(entries, Entry{
			Key:          key,
			Value:        a.value,
			Namespaces:   slices.Sorted(maps.Keys(a.namespaces)),
			GameVersions: slices.Sorted(maps.Keys(a.gameVersions)),
			Loaders:      slices.Sorted(maps.Keys(a.loaders)),
		})
		if onProgress != nil {
			onProgress(float64(i+1) / float64(len(keys)))
		}
	}
	return entries
}
