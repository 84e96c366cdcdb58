package model

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func validEvent() *TraceEvent {
	return &TraceEvent{
		PlotRef: "plot-1",
		Type:    EventPlanted,
		Actor:   "farmer-1",
	}
}

func TestValidateEvent(t *testing.T) {
	if err := ValidateEvent(validEvent()); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TraceEvent)
		field  string
	}{
		{"unknown type", func(e *TraceEvent) { e.Type = "FERTILIZED" }, "type"},
		{"missing actor", func(e *TraceEvent) { e.Actor = "  " }, "actor"},
		{"no refs", func(e *TraceEvent) { e.PlotRef = "" }, "vti_ref"},
		{"nan latitude", func(e *TraceEvent) { e.Geo = &GeoPoint{Lat: math.NaN(), Lon: 0} }, "geo"},
		{"latitude out of range", func(e *TraceEvent) { e.Geo = &GeoPoint{Lat: 91, Lon: 0} }, "geo"},
		{"longitude out of range", func(e *TraceEvent) { e.Geo = &GeoPoint{Lat: 0, Lon: -181} }, "geo"},
		{"bad payload", func(e *TraceEvent) { e.Payload = json.RawMessage(`{oops`) }, "payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validEvent()
			tc.mutate(e)
			err := ValidateEvent(e)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention field %q", err, tc.field)
			}
		})
	}
}

func TestValidateEvent_AllowsBoundaryCoordinates(t *testing.T) {
	e := validEvent()
	e.Geo = &GeoPoint{Lat: -90, Lon: 180}
	if err := ValidateEvent(e); err != nil {
		t.Fatalf("boundary coordinates rejected: %v", err)
	}
}

func TestValidateVTI(t *testing.T) {
	v := &VTI{ID: "vti-1", Type: TypeFarmBatch, Status: StatusActive}
	if err := ValidateVTI(v); err != nil {
		t.Fatalf("valid vti rejected: %v", err)
	}

	if err := ValidateVTI(&VTI{Type: TypeFarmBatch, Status: StatusActive}); err == nil {
		t.Error("missing id accepted")
	}
	if err := ValidateVTI(&VTI{ID: "vti-1", Status: StatusActive}); err == nil {
		t.Error("empty type accepted")
	}
	if err := ValidateVTI(&VTI{ID: "vti-1", Type: "custom_split", Status: StatusActive}); err != nil {
		t.Errorf("extensible type rejected: %v", err)
	}
	if err := ValidateVTI(&VTI{ID: "vti-1", Type: TypeFarmBatch, Status: "gone"}); err == nil {
		t.Error("unknown status accepted")
	}
	if err := ValidateVTI(&VTI{ID: "vti-1", Type: TypeFarmBatch, Status: StatusActive, LinkedIDs: []string{"vti-1"}}); err == nil {
		t.Error("self link accepted")
	}
}

func TestFarmFieldID(t *testing.T) {
	v := &VTI{ID: "vti-1"}
	if got := v.FarmFieldID(); got != "" {
		t.Errorf("FarmFieldID on nil metadata = %q", got)
	}
	v.Metadata = map[string]string{MetadataFarmField: "plot-3"}
	if got := v.FarmFieldID(); got != "plot-3" {
		t.Errorf("FarmFieldID = %q", got)
	}
}
