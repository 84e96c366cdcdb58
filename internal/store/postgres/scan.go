package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/harvestlink/traceledger/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanVTI scans a single row into a model.VTI.
// The row must contain columns in the order defined by vtiColumns.
func scanVTI(row scannable) (*model.VTI, error) {
	var v model.VTI
	var metadata []byte

	err := row.Scan(
		&v.ID,
		&v.Type,
		&v.Status,
		&metadata,
		&v.IsPublic,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("decode vti metadata: %w", err)
		}
	}

	return &v, nil
}

// scanVTIs scans multiple rows into a slice of model.VTI pointers.
func scanVTIs(rows *sql.Rows) ([]*model.VTI, error) {
	var vtis []*model.VTI
	for rows.Next() {
		v, err := scanVTI(rows)
		if err != nil {
			return nil, err
		}
		vtis = append(vtis, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vtis, nil
}

// scanEvent scans a single row into a model.TraceEvent.
// The row must contain columns in the order defined by eventColumns.
func scanEvent(row scannable) (*model.TraceEvent, error) {
	var e model.TraceEvent
	var (
		vtiRef  sql.NullString
		plotRef sql.NullString
		lat     sql.NullFloat64
		lon     sql.NullFloat64
		payload []byte
	)

	err := row.Scan(
		&e.ID,
		&vtiRef,
		&plotRef,
		&e.Type,
		&e.Actor,
		&lat,
		&lon,
		&payload,
		&e.IsPublic,
		&e.RecordedAt,
	)
	if err != nil {
		return nil, err
	}

	e.VTIRef = vtiRef.String
	e.PlotRef = plotRef.String
	if lat.Valid && lon.Valid {
		e.Geo = &model.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}

	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.TraceEvent pointers.
func scanEvents(rows *sql.Rows) ([]*model.TraceEvent, error) {
	var events []*model.TraceEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// scanAnnotation scans a single row into a model.Annotation.
func scanAnnotation(row scannable) (*model.Annotation, error) {
	var a model.Annotation
	var reason sql.NullString
	err := row.Scan(&a.ID, &a.EventID, &a.VTIRef, &a.IsAnomaly, &reason, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Reason = reason.String
	return &a, nil
}

// scanAnnotations scans multiple rows into a slice of model.Annotation pointers.
func scanAnnotations(rows *sql.Rows) ([]*model.Annotation, error) {
	var annotations []*model.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return annotations, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// metadataBytes encodes a metadata map for a JSONB column; empty maps are null.
func metadataBytes(m map[string]string) []byte {
	if len(m) == 0 {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}
