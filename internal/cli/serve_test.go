package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/telariq/loomgraph/pkg/config"
	"github.com/telariq/loomgraph/pkg/graph"
	"github.com/telariq/loomgraph/pkg/store"
)

func testServer(t *testing.T) *server {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return newServer(config.Default(), logger)
}

func postBatch(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/extractions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeIngestAndProject(t *testing.T) {
	srv := testServer(t)
	h := srv.routes()

	rec := postBatch(t, h, `{
		"entities": [
			{"id": "t1", "label": "Alice", "type": "PERSON"},
			{"id": "t2", "label": "Acme Corp", "type": "ORGANIZATION"}
		],
		"relations": [
			{"source": "t1", "target": "t2", "relation": "works at"}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp extractionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Version != 1 || !resp.Committed {
		t.Errorf("response = %+v, want committed version 1", resp)
	}
	if resp.AddedEntities != 2 || resp.AddedRels != 1 {
		t.Errorf("added = %d/%d, want 2/1", resp.AddedEntities, resp.AddedRels)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/projection", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("projection status = %d", rec.Code)
	}
	var proj store.Projection
	if err := json.Unmarshal(rec.Body.Bytes(), &proj); err != nil {
		t.Fatalf("decode projection: %v", err)
	}
	if len(proj.Nodes) != 2 || len(proj.Edges) != 1 {
		t.Errorf("projection = %d nodes %d edges, want 2/1", len(proj.Nodes), len(proj.Edges))
	}
	for _, n := range proj.Nodes {
		if !n.Data.New {
			t.Errorf("node %s should carry the new flag right after ingestion", n.ID)
		}
	}
}

func TestServeMalformedBatch(t *testing.T) {
	srv := testServer(t)
	h := srv.routes()

	rec := postBatch(t, h, `{"entities": [`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServeDroppedRecordsReported(t *testing.T) {
	srv := testServer(t)
	h := srv.routes()

	// One valid entity, one missing its label, one relation with an unknown
	// endpoint.
	rec := postBatch(t, h, `{
		"entities": [
			{"id": "t1", "label": "Alice", "type": "PERSON"},
			{"id": "t2", "type": "PERSON"}
		],
		"relations": [
			{"source": "t1", "target": "nobody", "relation": "knows"}
		]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp extractionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AddedEntities != 1 {
		t.Errorf("added entities = %d, want 1", resp.AddedEntities)
	}
	if len(resp.Warnings) != 2 {
		t.Errorf("warnings = %+v, want invalid record and missing endpoint", resp.Warnings)
	}
}

func TestServeResetAndHealth(t *testing.T) {
	srv := testServer(t)
	h := srv.routes()

	postBatch(t, h, `{"entities": [{"id": "t1", "label": "Alice", "type": "PERSON"}]}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/reset", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if srv.store.Version() != 0 || len(srv.store.Snapshot().Entities) != 0 {
		t.Error("reset should clear the store")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestServeMetricsRecordIngestion(t *testing.T) {
	registerMetrics()
	srv := testServer(t)
	h := srv.routes()

	entitiesBefore := testutil.ToFloat64(deltaRecordsTotal.WithLabelValues("entity"))
	layoutsBefore := testutil.ToFloat64(layoutRunsTotal.WithLabelValues("force", "full")) +
		testutil.ToFloat64(layoutRunsTotal.WithLabelValues("force", "incremental"))

	for i, label := range []string{"Alice", "Bob", "Carol"} {
		rec := postBatch(t, h, fmt.Sprintf(
			`{"entities": [{"id": "t1", "label": %q, "type": "PERSON"}]}`, label))
		if rec.Code != http.StatusOK {
			t.Fatalf("batch %d status = %d", i, rec.Code)
		}
	}

	entities := testutil.ToFloat64(deltaRecordsTotal.WithLabelValues("entity"))
	if got := entities - entitiesBefore; got != 3 {
		t.Errorf("entity records counted = %v, want 3", got)
	}
	layouts := testutil.ToFloat64(layoutRunsTotal.WithLabelValues("force", "full")) +
		testutil.ToFloat64(layoutRunsTotal.WithLabelValues("force", "incremental"))
	if got := layouts - layoutsBefore; got != 3 {
		t.Errorf("layout runs counted = %v, want 3", got)
	}
	if got := testutil.ToFloat64(graphVersion); got != 3 {
		t.Errorf("graph version gauge = %v, want 3", got)
	}
}

func TestServeGraphRoundTrips(t *testing.T) {
	srv := testServer(t)
	h := srv.routes()

	postBatch(t, h, `{"entities": [{"id": "t1", "label": "Alice", "type": "PERSON"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/v1/graph", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("graph status = %d", rec.Code)
	}
	var snap struct {
		Version  int            `json:"version"`
		Entities []graph.Entity `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode graph: %v", err)
	}
	if snap.Version != 1 || len(snap.Entities) != 1 {
		t.Errorf("graph = version %d, %d entities, want 1/1", snap.Version, len(snap.Entities))
	}
}
