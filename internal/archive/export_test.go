package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// exportStore is a fixed-content store.Store stub for export tests.
type exportStore struct {
	vtis        []*model.VTI
	links       map[string][]string
	events      []*model.TraceEvent
	annotations []*model.Annotation
}

func (m *exportStore) ListAllVTIs(context.Context) ([]*model.VTI, error) { return m.vtis, nil }
func (m *exportStore) ListAllEvents(context.Context) ([]*model.TraceEvent, error) {
	return m.events, nil
}
func (m *exportStore) ListAllAnnotations(context.Context) ([]*model.Annotation, error) {
	return m.annotations, nil
}
func (m *exportStore) GetLinks(_ context.Context, vtiID string) ([]string, error) {
	return m.links[vtiID], nil
}

func (m *exportStore) CreateVTI(context.Context, *model.VTI) error        { return nil }
func (m *exportStore) GetVTI(context.Context, string) (*model.VTI, error) { return nil, nil }
func (m *exportStore) ListPublicVTIs(context.Context, int) ([]*model.VTI, error) {
	return nil, nil
}
func (m *exportStore) UpdateVTIStatus(context.Context, string, model.VTIStatus) error { return nil }
func (m *exportStore) AddLink(context.Context, string, string) error                  { return nil }
func (m *exportStore) AppendEvent(context.Context, *model.TraceEvent) error           { return nil }
func (m *exportStore) GetEvent(context.Context, int64) (*model.TraceEvent, error) {
	return nil, nil
}
func (m *exportStore) ListEventsByPlot(context.Context, string, bool) ([]*model.TraceEvent, error) {
	return nil, nil
}
func (m *exportStore) ListEventsByVTI(context.Context, string) ([]*model.TraceEvent, error) {
	return nil, nil
}
func (m *exportStore) AddAnnotation(context.Context, *model.Annotation) error { return nil }
func (m *exportStore) ListAnnotationsByVTI(context.Context, string) ([]*model.Annotation, error) {
	return nil, nil
}
func (m *exportStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}
func (m *exportStore) Close() error { return nil }

func testStore() *exportStore {
	return &exportStore{
		vtis: []*model.VTI{
			{ID: "vti-a", Type: model.TypeFarmBatch, Status: model.StatusActive, IsPublic: true},
			{ID: "vti-b", Type: model.TypeProcessedBatch, Status: model.StatusConsumed},
		},
		links: map[string][]string{"vti-b": {"vti-a"}},
		events: []*model.TraceEvent{
			{ID: 1, PlotRef: "plot-1", Type: model.EventPlanted, Actor: "farmer-1"},
			{ID: 2, VTIRef: "vti-a", PlotRef: "plot-1", Type: model.EventHarvested, Actor: "farmer-1"},
		},
		annotations: []*model.Annotation{
			{ID: 1, EventID: 2, VTIRef: "vti-a", IsAnomaly: true, Reason: "out of season"},
		},
	}
}

func TestExportJSONL(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), testStore(), &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSONL line: %v", err)
		}
		lines = append(lines, m)
	}

	// header + 2 identifiers + 2 events + 1 annotation
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6", len(lines))
	}
	if lines[0]["type"] != "header" {
		t.Errorf("first line type = %v, want header", lines[0]["type"])
	}
	if lines[0]["identifier_count"] != float64(2) || lines[0]["event_count"] != float64(2) {
		t.Errorf("header counts = %v", lines[0])
	}
	if lines[1]["type"] != "identifier" || lines[3]["type"] != "event" || lines[5]["type"] != "annotation" {
		t.Errorf("record order = %v %v %v", lines[1]["type"], lines[3]["type"], lines[5]["type"])
	}

	// Lineage links ride along with the identifier records.
	var vti model.VTI
	raw, _ := json.Marshal(lines[2]["data"])
	if err := json.Unmarshal(raw, &vti); err != nil {
		t.Fatalf("decoding identifier: %v", err)
	}
	if vti.ID != "vti-b" || len(vti.LinkedIDs) != 1 || vti.LinkedIDs[0] != "vti-a" {
		t.Errorf("identifier = %+v", vti)
	}
}

// captureDestination records every payload it receives.
type captureDestination struct {
	mu     sync.Mutex
	writes [][]byte
}

func (d *captureDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), data...))
	return nil
}

func (d *captureDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func TestScheduler_ExportsImmediatelyOnStart(t *testing.T) {
	dest := &captureDestination{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(testStore(), []Destination{dest}, time.Hour, logger)

	sched.Start()
	defer sched.Stop()

	deadline := time.After(2 * time.Second)
	for dest.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial export")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !bytes.Contains(dest.writes[0], []byte(`"vti-a"`)) {
		t.Error("export payload missing identifier")
	}
}
