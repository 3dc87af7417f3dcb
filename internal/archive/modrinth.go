package archive

import (
	"context"
	"errors"
	"fmt"

	"rtranslator/internal/integrations"
	"rtranslator/internal/integrations/modrinth"
)

// ModrinthSource adapts the Modrinth API to Source.
type ModrinthSource struct {
	client *modrinth.Client
}

func NewModrinthSource(client *modrinth.Client) *ModrinthSource {
	return &ModrinthSource{client: client}
}

func (m *ModrinthSource) Resource(ctx context.Context, identifier string) (*Resource, error) {
	p, err := m.client.GetProject(ctx, identifier)
	if errors.Is(err, integrations.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResource, identifier)
	}
	if err != nil {
		return nil, err
	}
	return &Resource{
		Identifier:   p.ID,
		Slug:         p.Slug,
		Name:         p.Title,
		Description:  p.Description,
		IconURL:      p.IconURL,
		PageURL:      modrinth.PageURL(p.Slug),
		ProjectType:  p.ProjectType,
		Loaders:      p.Loaders,
		GameVersions: p.GameVersions,
	}, nil
}

func (m *ModrinthSource) Builds(ctx context.Context, identifier string) ([]Build, error) {
	versions, err := m.client.ListVersions(ctx, identifier)
	if err != nil {
		return nil, err
	}

	builds := make([]Build, 0, len(versions))
	for _, v := range versions {
		b := Build{
			Loaders:      v.Loaders,
			GameVersions: v.GameVersions,
			Published:    v.DatePublished,
			Files:        make([]BuildFile, 0, len(v.Files)),
		}
		for _, f := range v.Files {
			b.Files = append(b.Files, BuildFile{URL: f.URL, Filename: f.Filename, Primary: f.Primary, Size: f.Size})
		}
		builds = append(builds, b)
	}
	return builds, nil
}

func (m *ModrinthSource) Search(ctx context.Context, query string, page int) ([]Resource, error) {
	res, err := m.client.Search(ctx, query, page)
	if err != nil {
		return nil, err
	}

	out := make([]Resource, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, Resource{
			Identifier:  h.ProjectID,
			Slug:        h.Slug,
			Name:        h.Title,
			Description: h.Description,
			IconURL:     h.IconURL,
			PageURL:     modrinth.PageURL(h.Slug),
			ProjectType: h.ProjectType,
		})
	}
	return out, nil
}

var _ Source = (*ModrinthSource)(nil)
