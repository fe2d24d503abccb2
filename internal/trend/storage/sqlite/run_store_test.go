package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/canopy-data/clearcut.report/internal/timeutil"
)

func TestRunStoreInsertGeneratesID(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	run := &PipelineRun{
		AOI:           "plot-7",
		SpectralIndex: "NBR",
		StartYear:     1985,
		EndYear:       2020,
	}
	if err := store.Insert(run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("expected generated run ID")
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected status %q, got %q", RunStatusRunning, run.Status)
	}
	if run.CreatedUnixNanos == 0 {
		t.Error("expected created timestamp to be set")
	}
}

func TestRunStoreGetRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	params, _ := json.Marshal(map[string]interface{}{"dsnr_threshold": 2.0})
	run := &PipelineRun{
		RunID:         "run-abc",
		AOI:           "plot-7",
		SpectralIndex: "NDVI",
		StartYear:     1990,
		EndYear:       2010,
		ParamsJSON:    params,
	}
	if err := store.Insert(run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.Get("run-abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AOI != "plot-7" || got.SpectralIndex != "NDVI" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.StartYear != 1990 || got.EndYear != 2010 {
		t.Errorf("unexpected year range: %d..%d", got.StartYear, got.EndYear)
	}
	if got.FinishedUnixNanos != nil {
		t.Error("expected nil finished timestamp for running run")
	}

	var decoded map[string]float64
	if err := json.Unmarshal(got.ParamsJSON, &decoded); err != nil {
		t.Fatalf("params did not round-trip: %v", err)
	}
	if decoded["dsnr_threshold"] != 2.0 {
		t.Errorf("expected dsnr_threshold 2.0, got %v", decoded["dsnr_threshold"])
	}
}

func TestRunStoreGetMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	if _, err := store.Get("no-such-run"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRunStoreFinish(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	runID := insertTestRun(t, db)
	if err := store.Finish(runID, RunStatusComplete); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := store.Get(runID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != RunStatusComplete {
		t.Errorf("expected status %q, got %q", RunStatusComplete, got.Status)
	}
	if got.FinishedUnixNanos == nil {
		t.Error("expected finished timestamp to be set")
	}
}

func TestRunStoreFinishUnknownRun(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	if err := store.Finish("no-such-run", RunStatusFailed); err == nil {
		t.Error("expected error finishing unknown run")
	}
}

func TestRunStoreListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)

	older := &PipelineRun{RunID: "older", CreatedUnixNanos: 100, AOI: "a", SpectralIndex: "NBR"}
	newer := &PipelineRun{RunID: "newer", CreatedUnixNanos: 200, AOI: "a", SpectralIndex: "NBR"}
	for _, run := range []*PipelineRun{older, newer} {
		if err := store.Insert(run); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "newer" || runs[1].RunID != "older" {
		t.Errorf("expected newest first, got %s then %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestRunStoreDataErrors(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db)
	runID := insertTestRun(t, db)

	recs := []*DataErrorRecord{
		{RunID: runID, Year: 1994, Message: "no valid observations"},
		{RunID: runID, Year: 1987, Message: "no acquisitions in window"},
	}
	for _, rec := range recs {
		if err := store.InsertDataError(rec); err != nil {
			t.Fatalf("InsertDataError failed: %v", err)
		}
	}

	got, err := store.DataErrors(runID)
	if err != nil {
		t.Fatalf("DataErrors failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Year != 1987 || got[1].Year != 1994 {
		t.Errorf("expected ordering by year, got %d then %d", got[0].Year, got[1].Year)
	}
	if got[1].Message != "no valid observations" {
		t.Errorf("unexpected message: %q", got[1].Message)
	}
}

func TestRunStoreUsesInjectedClock(t *testing.T) {
	db := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	store := NewRunStoreWithClock(db, clock)

	run := &PipelineRun{AOI: "plot-7", SpectralIndex: "NBR"}
	if err := store.Insert(run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if run.CreatedUnixNanos != clock.Now().UnixNano() {
		t.Errorf("expected created at mock time, got %d", run.CreatedUnixNanos)
	}

	clock.Advance(time.Hour)
	if err := store.Finish(run.RunID, RunStatusComplete); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	got, err := store.Get(run.RunID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FinishedUnixNanos == nil || *got.FinishedUnixNanos != clock.Now().UnixNano() {
		t.Errorf("expected finish at advanced mock time, got %v", got.FinishedUnixNanos)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if isSQLiteBusy(nil) {
		t.Error("nil error should not be busy")
	}
	if !isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("expected busy error to be recognized")
	}
	if isSQLiteBusy(errors.New("UNIQUE constraint failed")) {
		t.Error("constraint error should not be busy")
	}
}

func TestRetryOnBusyGivesUpEventually(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 5 {
		t.Errorf("expected 5 attempts, got %d", calls)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return errors.New("UNIQUE constraint failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for non-busy error, got %d", calls)
	}
}
