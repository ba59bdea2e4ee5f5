package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boohill-ingest/models"
	"boohill-ingest/parser"
	"boohill-ingest/services"
	"boohill-ingest/storage"
	"boohill-ingest/utils"
)

const pasted = `삼익비치타운 216동
12/15층남향 47평 (전용 120㎡)
매매 18억
확인매물 2026.01.20
부동산뱅크공인중개사사무소`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	st, err := storage.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := utils.NewLeveledLogger(io.Discard, "error")
	imp := services.NewImporter(parser.New(parser.DefaultOptions()), st, nil, logger).
		WithClock(func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) })
	return NewRouter(NewHandlers(imp, st, logger), logger)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPreviewThenApplyByRunID(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/imports/preview", map[string]string{"text": pasted})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d; body %s", rec.Code, rec.Body)
	}
	var preview previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.RunID == "" || len(preview.Novel) != 1 || preview.AddedDate != "2026-02-01" {
		t.Fatalf("preview = %+v", preview)
	}
	if len(preview.Trace) == 0 || !strings.HasPrefix(preview.Trace[0], "Raw length:") {
		t.Errorf("trace = %q", preview.Trace)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	rec = do(t, h, http.MethodPost, "/api/v1/imports/apply", map[string]string{"run_id": preview.RunID})
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d; body %s", rec.Code, rec.Body)
	}
	var applied applyResponse
	json.Unmarshal(rec.Body.Bytes(), &applied)
	if applied.RunID != preview.RunID || applied.Outcome.NewHouses != 1 || applied.Outcome.NewItems != 1 {
		t.Errorf("apply = %+v", applied)
	}

	// A preview is applied at most once.
	rec = do(t, h, http.MethodPost, "/api/v1/imports/apply", map[string]string{"run_id": preview.RunID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("second apply status = %d; want 404", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/houses?building=216&area=47", nil)
	var houses []*models.PersistedHouse
	json.Unmarshal(rec.Body.Bytes(), &houses)
	if rec.Code != http.StatusOK || len(houses) != 1 || len(houses[0].Items) != 1 {
		t.Errorf("houses status %d: %s", rec.Code, rec.Body)
	}
}

func TestApplyWithTextReportsDuplicates(t *testing.T) {
	h := newTestRouter(t)

	for i, want := range []int{1, 0} {
		rec := do(t, h, http.MethodPost, "/api/v1/imports/apply", map[string]string{"text": pasted, "similar": "skip"})
		if rec.Code != http.StatusOK {
			t.Fatalf("apply %d status = %d; body %s", i, rec.Code, rec.Body)
		}
		var applied applyResponse
		json.Unmarshal(rec.Body.Bytes(), &applied)
		if applied.Outcome.NewHouses != want {
			t.Errorf("apply %d new houses = %d; want %d", i, applied.Outcome.NewHouses, want)
		}
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"empty text", http.MethodPost, "/api/v1/imports/preview", map[string]string{"text": "  "}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/v1/imports/preview", map[string]string{"txt": pasted}, http.StatusBadRequest},
		{"bad mode", http.MethodPost, "/api/v1/imports/apply", map[string]string{"text": pasted, "similar": "replace"}, http.StatusBadRequest},
		{"nothing to apply", http.MethodPost, "/api/v1/imports/apply", map[string]string{}, http.StatusBadRequest},
		{"unknown run", http.MethodPost, "/api/v1/imports/apply", map[string]string{"run_id": "nope"}, http.StatusNotFound},
		{"no building", http.MethodGet, "/api/v1/houses?area=47", nil, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/v1/imports/preview", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := do(t, h, tt.method, tt.path, tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d; want %d (body %s)", tt.name, rec.Code, tt.want, rec.Body)
		}
	}
}

func TestListHousesWithoutStore(t *testing.T) {
	logger := utils.NewLeveledLogger(io.Discard, "error")
	imp := services.NewImporter(parser.New(parser.DefaultOptions()), nil, nil, logger)
	h := NewRouter(NewHandlers(imp, nil, logger), logger)

	if rec := do(t, h, http.MethodGet, "/api/v1/houses?building=216", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/imports/apply", map[string]string{"text": pasted}); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("apply status = %d; want 503", rec.Code)
	}
}

func TestPreviewCacheEvictsOldest(t *testing.T) {
	c := newPreviewCache(2)
	for _, id := range []string{"a", "b", "c"} {
		c.put(&models.ImportPreview{RunID: id})
	}
	if c.len() != 2 {
		t.Errorf("len = %d; want 2", c.len())
	}
	if _, ok := c.take("a"); ok {
		t.Error("oldest preview should have been evicted")
	}
	if p, ok := c.take("c"); !ok || p.RunID != "c" {
		t.Error("newest preview missing")
	}
	if _, ok := c.take("c"); ok {
		t.Error("take should remove the preview")
	}
}
