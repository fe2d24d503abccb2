package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/canopy-data/clearcut.report/internal/testutil"
	sqlite "github.com/canopy-data/clearcut.report/internal/trend/storage/sqlite"
)

func setupServer(t *testing.T) (*Server, *http.ServeMux, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { db.Close() })

	schemaSQL, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_init.up.sql"))
	testutil.AssertNoError(t, err)
	_, err = db.Exec(string(schemaSQL))
	testutil.AssertNoError(t, err)

	srv := NewServer(sqlite.NewRunStore(db), sqlite.NewSummaryStore(db), sqlite.NewEventStore(db))
	return srv, srv.ServeMux(), db
}

func seedRun(t *testing.T, db *sql.DB) string {
	t.Helper()

	runs := sqlite.NewRunStore(db)
	run := &sqlite.PipelineRun{AOI: "plot-7", SpectralIndex: "NBR", StartYear: 2000, EndYear: 2004}
	testutil.AssertNoError(t, runs.Insert(run))

	summaries := sqlite.NewSummaryStore(db)
	mean, p05, p95 := 500.0, 420.0, 580.0
	testutil.AssertNoError(t, summaries.Insert(&sqlite.YearSummary{
		RunID: run.RunID, Year: 2000, ValidPixels: 95, TotalPixels: 100,
		IndexMean: &mean, IndexP05: &p05, IndexP95: &p95,
	}))
	testutil.AssertNoError(t, summaries.Insert(&sqlite.YearSummary{
		RunID: run.RunID, Year: 2001, ValidPixels: 0, TotalPixels: 100,
	}))
	testutil.AssertNoError(t, runs.InsertDataError(&sqlite.DataErrorRecord{
		RunID: run.RunID, Year: 2001, Message: "no observations in compositing window",
	}))

	rate, dsnr := -37.5, 3.75
	_, err := db.Exec(`
		INSERT INTO disturbance_events (run_id, x, y, yod, end_yr, start_val, end_val, mag, dur, rate, dsnr)
		VALUES (?, 3, 4, 2001, 2005, 650, 500, 150, 4, ?, ?)`, run.RunID, rate, dsnr)
	testutil.AssertNoError(t, err)

	return run.RunID
}

func TestListRuns(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var runs []*sqlite.PipelineRun
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	if len(runs) != 1 || runs[0].RunID != runID {
		t.Errorf("unexpected runs: %v", runs)
	}
}

func TestListRunsEmpty(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/runs"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestListRunsMethodNotAllowed(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/runs"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestRunSummary(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/run_summary?run_id="+runID))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Run        *sqlite.PipelineRun       `json:"run"`
		Years      []*sqlite.YearSummary     `json:"years"`
		DataErrors []*sqlite.DataErrorRecord `json:"data_errors"`
	}
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	if resp.Run == nil || resp.Run.RunID != runID {
		t.Fatalf("unexpected run: %+v", resp.Run)
	}
	if len(resp.Years) != 2 {
		t.Fatalf("expected 2 year summaries, got %d", len(resp.Years))
	}
	if resp.Years[0].IndexMean == nil || *resp.Years[0].IndexMean != 500 {
		t.Errorf("unexpected 2000 mean: %v", resp.Years[0].IndexMean)
	}
	if resp.Years[1].IndexMean != nil {
		t.Errorf("expected null mean for empty 2001, got %v", *resp.Years[1].IndexMean)
	}
	if len(resp.DataErrors) != 1 || resp.DataErrors[0].Year != 2001 {
		t.Errorf("unexpected data errors: %v", resp.DataErrors)
	}
}

func TestRunSummaryNotFound(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/run_summary?run_id=no-such-run"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestRunSummaryMissingParam(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/run_summary"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestListEventsByYear(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/events?run_id="+runID+"&yod=2001"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var events []*sqlite.EventRecord
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&events))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].X != 3 || events[0].Y != 4 || events[0].YOD != 2001 {
		t.Errorf("unexpected event: %+v", events[0])
	}

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/events?run_id="+runID+"&yod=1999"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestListEventsInvalidYear(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/events?run_id="+runID+"&yod=abc"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestPixelEvent(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/pixel?run_id="+runID+"&x=3&y=4"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var event sqlite.EventRecord
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&event))
	if event.YOD != 2001 || event.Dur != 4 {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Rate == nil {
		t.Fatal("expected rate")
	}
	testutil.AssertInDelta(t, *event.Rate, -37.5, 1e-9)
}

func TestPixelEventNoData(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/pixel?run_id="+runID+"&x=0&y=0"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestPixelEventBadCoordinates(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/pixel?run_id="+runID+"&x=-1&y=0"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/pixel?run_id="+runID+"&y=0"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestIndexChart(t *testing.T) {
	_, mux, db := setupServer(t)
	runID := seedRun(t, db)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/charts/index?run_id="+runID))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected HTML response, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "echarts") {
		t.Error("expected rendered chart markup")
	}
}

func TestVersionEndpoint(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/version"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var info map[string]string
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&info))
	if info["version"] == "" {
		t.Error("expected version field")
	}
}

func TestIndexChartUnknownRun(t *testing.T) {
	_, mux, _ := setupServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/charts/index?run_id=no-such-run"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}
