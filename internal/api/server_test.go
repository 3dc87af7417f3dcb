package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rtranslator/internal/analytics"
	"rtranslator/internal/archive"
	"rtranslator/internal/config"
	"rtranslator/internal/filesystem"
	"rtranslator/internal/integrations"
	"rtranslator/internal/integrations/modrinth"
	"rtranslator/internal/network"
	"rtranslator/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modJar(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"fabric.mod.json":                `{"id":"lithium"}`,
		"assets/lithium/lang/en_us.json": `{"block.lithium.hopper":"Hopper","gui.lithium.title":"Lithium"}`,
		"assets/lithium/lang/es_es.json": `{"block.lithium.hopper":"Tolva"}`,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newFakeModrinth(t *testing.T) *httptest.Server {
	t.Helper()
	jar := modJar(t)

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/project/lithium", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"gvQqBUqZ","slug":"lithium","title":"Lithium","project_type":"mod","loaders":["fabric"],"game_versions":["1.20.1"]}`))
	})
	mux.HandleFunc("/v2/project/lithium/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"loaders":["fabric"],"game_versions":["1.20.1"],"date_published":"2023-07-01T00:00:00Z",
			"files":[{"url":"%s/files/lithium.jar","filename":"lithium.jar","primary":true,"size":%d}]}]`, srv.URL, len(jar))
	})
	mux.HandleFunc("/v2/project/resourcepack", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"RP","slug":"resourcepack","title":"Pack","project_type":"resourcepack"}`))
	})
	mux.HandleFunc("/v2/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits":[{"project_id":"gvQqBUqZ","slug":"lithium","title":"Lithium","project_type":"mod"}],"offset":0,"limit":10,"total_hits":1}`))
	})
	mux.HandleFunc("/files/lithium.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jar)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testServer struct {
	*httptest.Server
	store     *storage.Storage
	bandwidth *network.BandwidthManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	upstream := newFakeModrinth(t)

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	settings := config.NewConfigManager(store, cfg)
	stagingDir := filepath.Join(t.TempDir(), "archives")
	stats := analytics.NewStatsManager(store, stagingDir, nil)
	bandwidth := network.NewBandwidthManager()

	client := modrinth.NewClient(integrations.NewClient(integrations.Options{RetryDelay: time.Millisecond}), upstream.URL)
	svc := archive.NewService(archive.ServiceOptions{
		Sources:     archive.Sources{Modrinth: archive.NewModrinthSource(client)},
		Planner:     archive.NewPlanner(filesystem.NewStaging(stagingDir)),
		Downloader:  archive.NewDownloader(archive.DownloaderOptions{Bandwidth: bandwidth}),
		Store:       store,
		Stats:       stats,
		Concurrency: settings.GetMaxSimultaneousDownloads,
	})
	t.Cleanup(svc.Wait)

	srv := httptest.NewServer(NewServer(Options{
		Archives:  svc,
		Store:     store,
		Config:    settings,
		Stats:     stats,
		Bandwidth: bandwidth,
	}).Handler())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, bandwidth: bandwidth}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", decode[map[string]string](t, resp)["status"])
}

func TestSubmitAndPollTask(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/archives/tasks", `{"provider":"modrinth","identifier":"lithium"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	taskID := decode[SubmitResponse](t, resp).TaskID
	assert.Equal(t, "modrinth-lithium", taskID)

	type taskView struct {
		Stage    string  `json:"stage"`
		Progress float64 `json:"progress"`
		Result   *uint   `json:"result"`
	}
	var final taskView
	require.Eventually(t, func() bool {
		resp := ts.do(t, http.MethodGet, "/archives/tasks/"+taskID, "")
		if resp.StatusCode != http.StatusOK {
			return false
		}
		final = decode[taskView](t, resp)
		return final.Stage == "completed" || final.Stage == "failed"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, "completed", final.Stage)
	require.NotNil(t, final.Result)

	// a task is forgotten after its terminal state has been observed
	require.Eventually(t, func() bool {
		return ts.do(t, http.MethodGet, "/archives/tasks/"+taskID, "").StatusCode == http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)

	modPath := fmt.Sprintf("/mods/%d", *final.Result)

	resp = ts.do(t, http.MethodGet, modPath+"/metadata", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Lithium", decode[storage.Mod](t, resp).Name)

	resp = ts.do(t, http.MethodGet, modPath+"/entries?query=hopper", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[EntriesResponse](t, resp)
	assert.Equal(t, int64(1), entries.TotalPages)
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, "Hopper", entries.Entries[0].Value)

	resp = ts.do(t, http.MethodGet, "/mods/search?query=lith", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[ModSearchResponse](t, resp).Mods, 1)

	resp = ts.do(t, http.MethodGet, "/archives/search?query=lith", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hits := decode[[]map[string]any](t, resp)
	require.Len(t, hits, 1)
	assert.Equal(t, true, hits[0]["included_in_database"])

	resp = ts.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[analytics.AnalyticsData](t, resp)
	assert.Equal(t, int64(1), stats.TotalArchives)
	assert.Positive(t, stats.TotalDownloaded)
}

func TestSubmitErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed body", `{`, http.StatusBadRequest},
		{"unknown provider", `{"provider":"github","identifier":"x"}`, http.StatusBadRequest},
		{"missing identifier", `{"provider":"modrinth"}`, http.StatusBadRequest},
		{"curseforge", `{"provider":"curseforge","identifier":"jei"}`, http.StatusNotImplemented},
		{"not a mod", `{"provider":"modrinth","identifier":"resourcepack"}`, http.StatusBadRequest},
		{"unknown project", `{"provider":"modrinth","identifier":"nothing"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/archives/tasks", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, decode[errorResponse](t, resp).Error)
		})
	}
}

func TestUnknownTask(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/archives/tasks/modrinth-unknown", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCatalogNotFound(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/mods/42/metadata", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/mods/42/entries", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/mods/abc/metadata", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/mods/search?page=-1", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/entries/text/missing.key/translations", "").StatusCode)
}

func TestTranslations(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.SaveTextEntries(context.Background(), []storage.TextEntry{{Key: "item.test.apple", Value: "Apple"}}))

	resp := ts.do(t, http.MethodPost, "/entries/text/item.test.apple/translate", `{"content":"Manzana"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotZero(t, decode[TranslateResponse](t, resp).ID)

	resp = ts.do(t, http.MethodPost, "/entries/text/item.test.apple/translate", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/entries/text/item.test.apple/translations", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]storage.TextTranslation](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Manzana", list[0].Content)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, decode[config.Settings](t, resp).MaxSimultaneousDownloads)

	resp = ts.do(t, http.MethodPut, "/settings", `{"max_simultaneous_downloads":3,"bandwidth_limit":1048576}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[config.Settings](t, resp)
	assert.Equal(t, 3, got.MaxSimultaneousDownloads)
	assert.Equal(t, int64(1048576), got.BandwidthLimit)
	assert.Equal(t, int64(1048576), ts.bandwidth.Limit())

	resp = ts.do(t, http.MethodPut, "/settings", `{"max_simultaneous_downloads":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConcurrencyLimit(t *testing.T) {
	s := NewServer(Options{})
	s.activeReqs = 1 << 30

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
