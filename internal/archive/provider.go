package archive

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names a third-party distribution platform.
type Provider string

const (
	CurseForge Provider = "curseforge"
	Modrinth   Provider = "modrinth"
)

// ParseProvider resolves a provider name, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case CurseForge, Modrinth:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

func (p *Provider) UnmarshalText(text []byte) error {
	parsed, err := ParseProvider(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Provider) MarshalText() ([]byte, error) {
	return []byte(p), nil
}

// ProjectTypeMod is the only resource kind that can be ingested.
const ProjectTypeMod = "mod"

// Resource is a provider-neutral description of a published project.
type Resource struct {
	Identifier   string   `json:"identifier"`
	Slug         string   `json:"slug,omitempty"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	IconURL      string   `json:"icon_url"`
	PageURL      string   `json:"page_url"`
	ProjectType  string   `json:"project_type"`
	Loaders      []string `json:"loaders,omitempty"`
	GameVersions []string `json:"game_versions,omitempty"`
}

// Build is one published release of a resource.
type Build struct {
	Loaders      []string
	GameVersions []string
	Files        []BuildFile
	Published    time.Time
}

// BuildFile is a downloadable artifact of a Build.
type BuildFile struct {
	URL      string
	Filename string
	Primary  bool
	Size     uint64
}

// Source is a provider adapter.
type Source interface {
	Resource(ctx context.Context, identifier string) (*Resource, error)
	Builds(ctx context.Context, identifier string) ([]Build, error)
	Search(ctx context.Context, query string, page int) ([]Resource, error)
}

// Sources maps each provider to its adapter.
type Sources struct {
	Modrinth Source
}

// For returns the adapter for p. CurseForge is declared but not supported.
func (s Sources) For(p Provider) (Source, error) {
	switch p {
	case Modrinth:
		if s.Modrinth == nil {
			return nil, fmt.Errorf("%w: %s adapter not configured", ErrProviderNotImplemented, p)
		}
		return s.Modrinth, nil
	case CurseForge:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotImplemented, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, string(p))
	}
}

// TaskID is the registry key of an ingestion of identifier from p.
func TaskID(p Provider, identifier string) string {
	return string(p) + "-" + identifier
}
