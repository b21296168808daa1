package restapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/streamgate-io/streamgate/filters"
	"github.com/streamgate-io/streamgate/topk"
	"github.com/stretchr/testify/require"
)

func testGate(t *testing.T) *Gate {
	t.Helper()
	cfg, err := filters.ParsePipelineConfig([]byte(`
top_keys:
  field: user
  capacity: 10
cms_limit:
  key_fields: [tenant]
  value_field: user
  width: 1024
  depth: 4
  limit: 2
  bound: upper
`))
	require.NoError(t, err)
	cfg.CMSLimit.DataDir = t.TempDir()
	pipe, limit, top, err := cfg.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = limit.Close() })
	return NewGate(pipe, limit, top)
}

func TestGetRoot(t *testing.T) {
	gate := testGate(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Streamgate", w.Body.String())
}

func TestPostRecords(t *testing.T) {
	gate := testGate(t)
	body := strings.Join([]string{
		`{"tenant":"t1","user":"alice"}`,
		`{"tenant":"t1","user":"alice"}`,
		`{"tenant":"t1","user":"alice"}`,
		`{"tenant":"t1","user":"bob"}`,
	}, "\n")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp postRecordsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.Received)
	// the third alice record crossed the limit of 2
	require.Equal(t, 3, resp.Accepted)
	require.Equal(t, 1, resp.States["CMSLimit-limited"])
}

func TestPostRecordsBadJson(t *testing.T) {
	gate := testGate(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(`{"broken`))
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTopKeys(t *testing.T) {
	gate := testGate(t)
	body := strings.Join([]string{
		`{"tenant":"t1","user":"alice"}`,
		`{"tenant":"t1","user":"alice"}`,
		`{"tenant":"t1","user":"bob"}`,
	}, "\n")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(body))
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/topk", nil)
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []topk.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "alice", entries[0].Key)
	require.Equal(t, uint64(2), entries[0].Count)
}

func TestGetTopKeysEncoded(t *testing.T) {
	gate := testGate(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(`{"tenant":"t1","user":"alice"}`))
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/topk/encoded", nil)
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	decoded := topk.New(false)
	require.NoError(t, decoded.BytesDecode(w.Body.Bytes(), 1))
	count, ok := decoded.Get("alice")
	require.True(t, ok)
	require.Equal(t, uint64(1), count)
}

func TestGetStats(t *testing.T) {
	gate := testGate(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	gate.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, []string{"TopKeys", "CMSLimit"}, resp.Stages)
}
