package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateEvent checks a TraceEvent for constraint violations before it is
// appended. It returns a *ValidationError if any rules fail, or nil if the
// event is valid. Referential integrity of VTIRef is checked separately
// against the registry; this covers shape only.
func ValidateEvent(e *TraceEvent) error {
	var ve ValidationError

	// Type: must be a known enum value (closed set).
	if !e.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", e.Type),
		})
	}

	// Actor: required. Automated writers use SystemActor.
	if strings.TrimSpace(e.Actor) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "actor", Message: "is required"})
	}

	// Partition: at least one of the two refs must be set.
	if e.VTIRef == "" && e.PlotRef == "" {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "vti_ref",
			Message: "either vti_ref or plot_ref is required",
		})
	}

	// Geo: both coordinates must be finite numbers when present.
	if e.Geo != nil {
		if math.IsNaN(e.Geo.Lat) || math.IsInf(e.Geo.Lat, 0) ||
			math.IsNaN(e.Geo.Lon) || math.IsInf(e.Geo.Lon, 0) {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "geo",
				Message: "coordinates must be finite numbers",
			})
		} else if e.Geo.Lat < -90 || e.Geo.Lat > 90 || e.Geo.Lon < -180 || e.Geo.Lon > 180 {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "geo",
				Message: fmt.Sprintf("coordinates out of range (%v, %v)", e.Geo.Lat, e.Geo.Lon),
			})
		}
	}

	// Payload: must be valid JSON if present.
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "payload",
			Message: "contains invalid JSON",
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateVTI checks a VTI record before insertion.
func ValidateVTI(v *VTI) error {
	var ve ValidationError

	if strings.TrimSpace(v.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "id", Message: "is required"})
	}

	if !v.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: "is required"})
	}

	if !v.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", v.Status),
		})
	}

	// Self-links would make the lineage graph trivially cyclic.
	for _, linked := range v.LinkedIDs {
		if linked == v.ID {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "linked_ids",
				Message: "must not reference the identifier itself",
			})
			break
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
