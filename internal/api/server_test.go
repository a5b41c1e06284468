package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/cache"
	"github.com/lareunion-tech/startup-matcher/internal/crawl"
	"github.com/lareunion-tech/startup-matcher/internal/curated"
	"github.com/lareunion-tech/startup-matcher/internal/directory"
	"github.com/lareunion-tech/startup-matcher/internal/matcher"
)

type stubCrawler struct{}

func (stubCrawler) Run(_ context.Context) crawl.Result {
	return crawl.Result{
		RunID: "run-test",
		Records: []directory.StartupRecord{
			{
				ID:          "startup-aaaa1111",
				Name:        "LogisticPlus Réunion",
				Description: "Optimisation des flux logistiques",
				Tags:        []string{"Supply Chain"},
				Domain:      "Logistique",
				Location:    "Le Port",
			},
			{
				ID:          "startup-bbbb2222",
				Name:        "Tech Océan",
				Description: "Analyse de données marines",
				Tags:        []string{"IA"},
				Domain:      "Technologie",
				Location:    "Saint-Denis",
			},
		},
		Status:  directory.StatusSuccess,
		Message: "crawled 2 records",
	}
}

// memCurated is an in-memory curated.Provider for handler tests.
type memCurated struct {
	records []directory.StartupRecord
}

func (m *memCurated) Merge(_ context.Context, records []directory.StartupRecord) (int, error) {
	m.records = append(m.records, records...)
	return len(records), nil
}

func (m *memCurated) List(_ context.Context) ([]directory.StartupRecord, error) {
	return m.records, nil
}

func (m *memCurated) Close() {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWithCurated(t, nil)
}

func newTestServerWithCurated(t *testing.T, provider curated.Provider) *Server {
	t.Helper()
	store := cache.NewStore(t.TempDir(), zap.NewNop())
	svc := cache.NewService(store, stubCrawler{}, provider, 10*time.Minute, zap.NewNop())
	m := matcher.New(matcher.DefaultWeights(), true, nil, zap.NewNop())
	return NewServer(svc, m, nil, nil, zap.NewNop())
}

func postJSON(t *testing.T, srv *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSearchReturnsRankedMatches(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv, "/v1/search", map[string]any{
		"need":  "logistique optimisation",
		"top_k": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Mode    string `json:"mode"`
		Matches []struct {
			Record directory.StartupRecord `json:"record"`
			Score  int                     `json:"score"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "keyword", resp.Mode)
	require.Len(t, resp.Matches, 1, "top_k must bound the result set")
	assert.Equal(t, "LogisticPlus Réunion", resp.Matches[0].Record.Name)
	assert.GreaterOrEqual(t, resp.Matches[0].Score, 3)
}

func TestSearchRejectsMissingNeed(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv, "/v1/search", map[string]any{"top_k": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchRejectsInvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCombineReturnsCrossDomainPairs(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv, "/v1/combine", map[string]any{
		"need":  "logistique données",
		"top_k": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Combinations []struct {
			Startups [2]directory.StartupRecord `json:"startups"`
			Reason   string                     `json:"reason"`
		} `json:"combinations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Combinations)
	combo := resp.Combinations[0]
	assert.NotEqual(t, combo.Startups[0].Domain, combo.Startups[1].Domain)
	assert.NotEmpty(t, combo.Reason)
}

func TestRefreshForcesRecrawl(t *testing.T) {
	srv := newTestServer(t)
	rec := postJSON(t, srv, "/v1/refresh", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 2, resp["records"])
	assert.Equal(t, string(directory.StatusSuccess), resp["status"])
}

func TestGetStartupByID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/startups/startup-bbbb2222", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var startup directory.StartupRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &startup))
	assert.Equal(t, "Tech Océan", startup.Name)
}

func TestGetStartupNotFound(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/startups/startup-missing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCuratedReturnsPersistedRecords(t *testing.T) {
	provider := &memCurated{records: []directory.StartupRecord{
		{ID: "startup-cccc3333", Name: "AgriPéi", Domain: "Agritech"},
	}}
	srv := newTestServerWithCurated(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/v1/curated", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count    int                       `json:"count"`
		Startups []directory.StartupRecord `json:"startups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Startups, 1)
	assert.Equal(t, "AgriPéi", resp.Startups[0].Name)
}

func TestListCuratedWithoutDatabaseIsEmpty(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/curated", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
