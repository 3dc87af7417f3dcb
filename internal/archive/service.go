package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"rtranslator/internal/storage"
)

// Store persists ingestion results.
type Store interface {
	SaveResource(ctx context.Context, listing storage.ModProvider, status storage.ModStatus) (uint, error)
	SaveTextEntries(ctx context.Context, entries []storage.TextEntry) error
	IncludedIdentifiers(ctx context.Context, provider string, identifiers []string) (map[string]bool, error)
}

// Stats receives ingestion volume counters.
type Stats interface {
	TrackDownloadBytes(bytes int64)
	TrackArchivesProcessed(n int)
}

// Progress checkpoints of a task's lifecycle.
const (
	progressDownloading = 0.05
	downloadShare       = 0.5
	progressExtracting  = 0.55
	extractShare        = 0.2
	progressMerging     = 0.75
	mergeShare          = 0.15
	progressSaving      = 0.9
)

// ServiceOptions wires a Service.
type ServiceOptions struct {
	Sources    Sources
	Registry   *Registry
	Planner    *Planner
	Downloader *Downloader
	Extractor  *Extractor
	Store      Store
	Stats      Stats
	// Concurrency returns the per-batch transfer limit; read once per task.
	Concurrency func() int
	Logger      *slog.Logger
}

// Service accepts ingestion requests and runs each one in the background.
type Service struct {
	sources     Sources
	registry    *Registry
	planner     *Planner
	downloader  *Downloader
	extractor   *Extractor
	store       Store
	stats       Stats
	concurrency func() int
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		sources:     opts.Sources,
		registry:    opts.Registry,
		planner:     opts.Planner,
		downloader:  opts.Downloader,
		extractor:   opts.Extractor,
		store:       opts.Store,
		stats:       opts.Stats,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.downloader == nil {
		s.downloader = NewDownloader(DownloaderOptions{Logger: opts.Logger})
	}
	if s.extractor == nil {
		s.extractor = NewExtractor()
	}
	if s.concurrency == nil {
		s.concurrency = func() int { return 10 }
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Registry exposes the task registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Submit validates identifier against the provider and starts an ingestion.
// Submitting an identifier that is already in flight returns the existing
// task id without starting a second pipeline.
func (s *Service) Submit(ctx context.Context, provider Provider, identifier string) (string, error) {
	src, err := s.sources.For(provider)
	if err != nil {
		return "", err
	}

	id := TaskID(provider, identifier)
	if _, ok := s.registry.Get(id); ok {
		return id, nil
	}

	res, err := src.Resource(ctx, identifier)
	if err != nil {
		return "", err
	}
	if res.ProjectType != ProjectTypeMod {
		return "", fmt.Errorf("%w: %s is a %s", ErrInvalidResource, identifier, res.ProjectType)
	}

	if !s.registry.Submit(id) {
		return id, nil
	}

	s.logger.Info("archive task submitted", "id", id)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(id, provider, identifier, src, res)
	}()
	return id, nil
}

// Task returns the task's current state. The first call that observes a
// terminal stage schedules the task's removal, so later calls report it missing.
func (s *Service) Task(id string) (Task, bool) {
	t, ok := s.registry.Get(id)
	if ok && t.Stage.Terminal() {
		go s.registry.RemoveIfTerminal(id)
	}
	return t, ok
}

// Wait blocks until every started pipeline has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(id string, provider Provider, identifier string, src Source, res *Resource) {
	start := time.Now()
	modID, err := s.ingest(context.Background(), id, provider, identifier, src, res)
	if err != nil {
		s.registry.Fail(id)
		s.logger.Error("archive task failed", "id", id, "kind", KindOf(err).String(), "error", err)
		return
	}
	s.registry.Complete(id, modID)
	s.logger.Info("archive task completed", "id", id, "mod_id", modID, "elapsed", time.Since(start).Round(time.Millisecond))
}

func (s *Service) ingest(ctx context.Context, id string, provider Provider, identifier string, src Source, res *Resource) (uint, error) {
	plans, err := s.planner.Plan(ctx, src, identifier)
	if err != nil {
		return 0, err
	}
	s.registry.Advance(id, StageDownloading, progressDownloading)
	s.logger.Debug("download plan ready", "id", id, "archives", len(plans))

	// archives left behind by a failure are never extracted, so drop them here
	extracted := 0
	defer func() {
		for _, p := range plans[extracted:] {
			os.Remove(p.Path)
		}
	}()

	err = s.downloader.Download(ctx, plans, s.concurrency(), func(f float64) {
		s.registry.SetProgress(id, progressDownloading+f*downloadShare)
	})
	if err != nil {
		return 0, err
	}
	if s.stats != nil {
		var total uint64
		for _, p := range plans {
			total += p.Size
		}
		s.stats.TrackDownloadBytes(int64(total))
	}

	s.registry.Advance(id, StageExtracting, progressExtracting)
	sources := make([]MergeSource, 0, len(plans))
	for i, p := range plans {
		m, err := s.extractor.Extract(p.Path)
		extracted = i + 1
		if err != nil {
			return 0, err
		}
		if m != nil {
			sources = append(sources, MergeSource{Map: m, Plan: p})
		}
		s.registry.SetProgress(id, progressExtracting+extractShare*float64(i+1)/float64(len(plans)))
	}
	if s.stats != nil {
		s.stats.TrackArchivesProcessed(len(plans))
	}

	entries := Merge(sources, func(f float64) {
		s.registry.SetProgress(id, progressMerging+f*mergeShare)
	})

	s.registry.Advance(id, StageSaving, progressSaving)
	return s.persist(ctx, provider, res, entries)
}

func (s *Service) persist(ctx context.Context, provider Provider, res *Resource, entries []Entry) (uint, error) {
	status := storage.ModStatusNormal
	if len(entries) == 0 {
		status = storage.ModStatusMissingEntries
	}

	modID, err := s.store.SaveResource(ctx, storage.ModProvider{
		ProviderType: string(provider),
		Identifier:   res.Identifier,
		DisplayName:  res.Name,
		Description:  res.Description,
		ImageURL:     res.IconURL,
		PageURL:      res.PageURL,
	}, status)
	if err != nil {
		return 0, newError(KindPersistence, "save resource", err)
	}

	records := make([]storage.TextEntry, len(entries))
	for i, e := range entries {
		records[i] = storage.TextEntry{
			Key:          e.Key,
			Value:        e.Value,
			Namespaces:   e.Namespaces,
			GameVersions: e.GameVersions,
			Loaders:      e.Loaders,
			ModID:        modID,
		}
	}
	if err := s.store.SaveTextEntries(ctx, records); err != nil {
		return 0, newError(KindPersistence, "save entries", err)
	}
	return modID, nil
}

// SearchHit is a provider search result annotated with catalog membership.
type SearchHit struct {
	Resource
	IncludedInDatabase bool `json:"included_in_database"`
}

// Search queries the provider and marks hits already in the catalog.
func (s *Service) Search(ctx context.Context, provider Provider, query string, page int) ([]SearchHit, error) {
	src, err := s.sources.For(provider)
	if err != nil {
		return nil, err
	}

	resources, err := src.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.Identifier
	}
	included, err := s.store.IncludedIdentifiers(ctx, string(provider), ids)
	if err != nil {
		return nil, fmt.Errorf("check catalog: %w", err)
	}

	hits := make([]SearchHit, len(resources))
	for i, r := range resources {
		hits[i] = SearchHit{Resource: r, IncludedInDatabase: included[r.Identifier]}
	}
	return hits, nil
}
