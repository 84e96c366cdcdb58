package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// vtiRowColumns is the column list for scanVTI results.
var vtiRowColumns = []string{"id", "type", "status", "metadata", "is_public", "created_at"}

// eventRowColumns is the column list for scanEvent results.
var eventRowColumns = []string{
	"id", "vti_id", "plot_id", "event_type", "actor", "lat", "lon", "payload", "is_public", "recorded_at",
}

func TestScanHelpers(t *testing.T) {
	// nullString
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("vti-abc"); !ns.Valid || ns.String != "vti-abc" {
		t.Errorf("nullString(\"vti-abc\") = %v", ns)
	}

	// jsonbBytes
	if jsonbBytes(nil) != nil {
		t.Error("jsonbBytes(nil) should be nil")
	}
	input := json.RawMessage(`{"weightKg":120}`)
	if string(jsonbBytes(input)) != `{"weightKg":120}` {
		t.Errorf("jsonbBytes = %s", jsonbBytes(input))
	}

	// metadataBytes
	if metadataBytes(nil) != nil {
		t.Error("metadataBytes(nil) should be nil")
	}
	got := metadataBytes(map[string]string{"farmFieldId": "plot-1"})
	var back map[string]string
	if err := json.Unmarshal(got, &back); err != nil || back["farmFieldId"] != "plot-1" {
		t.Errorf("metadataBytes round trip = %s (err %v)", got, err)
	}
}

func TestQueryCreateVTI(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	vti := &model.VTI{
		ID:       "vti-abc123",
		Type:     model.TypeFarmBatch,
		Status:   model.StatusActive,
		Metadata: map[string]string{"farmFieldId": "plot-9"},
		IsPublic: true,
	}
	mock.ExpectQuery("INSERT INTO vtis").
		WithArgs("vti-abc123", "farm_batch", "active", sqlmock.AnyArg(), true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	if err := queryCreateVTI(context.Background(), db, vti); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !vti.CreatedAt.Equal(now) {
		t.Errorf("created_at not populated: %v", vti.CreatedAt)
	}
}

func TestQueryCreateVTI_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO vtis").
		WillReturnError(&pq.Error{Code: "23505"})

	err := queryCreateVTI(context.Background(), db, &model.VTI{
		ID: "vti-dup", Type: model.TypeFarmBatch, Status: model.StatusActive,
	})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestQueryGetVTI(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(vtiRowColumns).AddRow(
		"vti-abc123", "farm_batch", "active", []byte(`{"farmFieldId":"plot-9"}`), true, now,
	)
	mock.ExpectQuery("SELECT .+ FROM vtis WHERE id = \\$1").WithArgs("vti-abc123").WillReturnRows(rows)
	mock.ExpectQuery("SELECT linked_id FROM vti_links WHERE vti_id = \\$1").WithArgs("vti-abc123").
		WillReturnRows(sqlmock.NewRows([]string{"linked_id"}).AddRow("vti-parent"))

	vti, err := queryGetVTI(context.Background(), db, "vti-abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vti.FarmFieldID() != "plot-9" {
		t.Errorf("FarmFieldID = %q, want plot-9", vti.FarmFieldID())
	}
	if len(vti.LinkedIDs) != 1 || vti.LinkedIDs[0] != "vti-parent" {
		t.Errorf("LinkedIDs = %v", vti.LinkedIDs)
	}
}

func TestQueryGetVTI_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM vtis WHERE id = \\$1").WithArgs("vti-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := queryGetVTI(context.Background(), db, "vti-missing")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryListPublicVTIs_ClampsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(vtiRowColumns).
		AddRow("vti-1", "farm_batch", "active", nil, true, now)
	mock.ExpectQuery("SELECT .+ FROM vtis\\s+WHERE is_public").WithArgs(50).WillReturnRows(rows)

	vtis, err := queryListPublicVTIs(context.Background(), db, -3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vtis) != 1 || vtis[0].ID != "vti-1" {
		t.Fatalf("got %v", vtis)
	}
	if vtis[0].Metadata != nil {
		t.Errorf("expected nil metadata, got %v", vtis[0].Metadata)
	}
}

func TestQueryUpdateVTIStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE vtis SET status").WithArgs("vti-missing", "recalled").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := queryUpdateVTIStatus(context.Background(), db, "vti-missing", model.StatusRecalled)
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryAppendEvent(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	event := &model.TraceEvent{
		VTIRef:   "vti-abc123",
		PlotRef:  "plot-9",
		Type:     model.EventHarvested,
		Actor:    "farmer-1",
		Geo:      &model.GeoPoint{Lat: 7.5, Lon: 80.2},
		Payload:  json.RawMessage(`{"weightKg":120}`),
		IsPublic: true,
	}
	mock.ExpectQuery("INSERT INTO trace_events").
		WithArgs("vti-abc123", "plot-9", "HARVESTED", "farmer-1", 7.5, 80.2, []byte(`{"weightKg":120}`), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow(int64(42), now))

	if err := queryAppendEvent(context.Background(), db, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != 42 {
		t.Errorf("id = %d, want 42", event.ID)
	}
	if !event.RecordedAt.Equal(now) {
		t.Errorf("recorded_at not assigned by store: %v", event.RecordedAt)
	}
}

func TestQueryAppendEvent_PreHarvestNoGeo(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	event := &model.TraceEvent{
		PlotRef: "plot-9",
		Type:    model.EventPlanted,
		Actor:   "farmer-1",
	}
	mock.ExpectQuery("INSERT INTO trace_events").
		WithArgs(nil, "plot-9", "PLANTED", "farmer-1", nil, nil, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow(int64(1), now))

	if err := queryAppendEvent(context.Background(), db, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryListEventsByPlot(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(int64(1), nil, "plot-9", "PLANTED", "farmer-1", nil, nil, nil, true, now).
		AddRow(int64(2), nil, "plot-9", "OBSERVED", "agronomist-2", 7.5, 80.2, []byte(`{"note":"rust"}`), true, now.Add(time.Hour))
	mock.ExpectQuery("SELECT .+ FROM trace_events WHERE plot_id = \\$1 AND vti_id IS NULL").
		WithArgs("plot-9").WillReturnRows(rows)

	events, err := queryListEventsByPlot(context.Background(), db, "plot-9", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].VTIRef != "" || events[0].PlotRef != "plot-9" {
		t.Errorf("event 0 refs: vti=%q plot=%q", events[0].VTIRef, events[0].PlotRef)
	}
	if events[1].Geo == nil || events[1].Geo.Lat != 7.5 {
		t.Errorf("event 1 geo not scanned: %+v", events[1].Geo)
	}
}

func TestQueryListEventsByVTI(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(eventRowColumns).
		AddRow(int64(3), "vti-abc123", "plot-9", "HARVESTED", "farmer-1", nil, nil, nil, true, now)
	mock.ExpectQuery("SELECT .+ FROM trace_events\\s+WHERE vti_id = \\$1").
		WithArgs("vti-abc123").WillReturnRows(rows)

	events, err := queryListEventsByVTI(context.Background(), db, "vti-abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Type != model.EventHarvested {
		t.Fatalf("got %v", events)
	}
}

func TestQueryAddAnnotation(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	a := &model.Annotation{
		EventID:   42,
		VTIRef:    "vti-abc123",
		IsAnomaly: true,
		Reason:    "implausible transport distance",
	}
	mock.ExpectQuery("INSERT INTO event_annotations").
		WithArgs(int64(42), "vti-abc123", true, "implausible transport distance").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	if err := queryAddAnnotation(context.Background(), db, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID != 7 {
		t.Errorf("id = %d, want 7", a.ID)
	}
}

func TestQueryListAnnotationsByVTI(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "event_id", "vti_id", "is_anomaly", "reason", "created_at"}).
		AddRow(int64(7), int64(42), "vti-abc123", true, "implausible transport distance", now)
	mock.ExpectQuery("SELECT .+ FROM event_annotations").
		WithArgs("vti-abc123").WillReturnRows(rows)

	annotations, err := queryListAnnotationsByVTI(context.Background(), db, "vti-abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(annotations) != 1 || annotations[0].EventID != 42 || !annotations[0].IsAnomaly {
		t.Fatalf("got %+v", annotations)
	}
}

func TestRunInTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO vtis").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("INSERT INTO trace_events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "recorded_at"}).AddRow(int64(1), now))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if err := tx.CreateVTI(context.Background(), &model.VTI{
			ID: "vti-tx1", Type: model.TypeFarmBatch, Status: model.StatusActive,
		}); err != nil {
			return err
		}
		return tx.AppendEvent(context.Background(), &model.TraceEvent{
			VTIRef: "vti-tx1", Type: model.EventHarvested, Actor: "farmer-1",
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// The harvest transition's atomicity hinges on this: a failed event append
// rolls the identifier insert back, leaving no orphaned VTI.
func TestRunInTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO vtis").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("INSERT INTO trace_events").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if err := tx.CreateVTI(context.Background(), &model.VTI{
			ID: "vti-tx2", Type: model.TypeFarmBatch, Status: model.StatusActive,
		}); err != nil {
			return err
		}
		return tx.AppendEvent(context.Background(), &model.TraceEvent{
			VTIRef: "vti-tx2", Type: model.EventHarvested, Actor: "farmer-1",
		})
	})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("expected disk full error, got %v", err)
	}
}
