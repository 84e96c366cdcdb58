package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// vtiColumns is the column list used for SELECT statements on the vtis table.
const vtiColumns = `id, type, status, metadata, is_public, created_at`

// eventColumns is the column list used for SELECT statements on the
// trace_events table.
const eventColumns = `id, vti_id, plot_id, event_type, actor, lat, lon, payload, is_public, recorded_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateVTI(ctx context.Context, db executor, v *model.VTI) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO vtis (id, type, status, metadata, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		v.ID,
		string(v.Type),
		string(v.Status),
		metadataBytes(v.Metadata),
		v.IsPublic,
	).Scan(&v.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicateID
	}
	return err
}

func queryGetVTI(ctx context.Context, db executor, id string) (*model.VTI, error) {
	row := db.QueryRowContext(ctx, `SELECT `+vtiColumns+` FROM vtis WHERE id = $1`, id)
	v, err := scanVTI(row)
	if err != nil {
		return nil, err
	}

	links, err := queryGetLinks(ctx, db, id)
	if err != nil {
		return nil, err
	}
	v.LinkedIDs = links

	return v, nil
}

func queryListPublicVTIs(ctx context.Context, db executor, limit int) ([]*model.VTI, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+vtiColumns+` FROM vtis
		WHERE is_public
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list public vtis: %w", err)
	}
	defer rows.Close()
	return scanVTIs(rows)
}

func queryUpdateVTIStatus(ctx context.Context, db executor, id string, status model.VTIStatus) error {
	res, err := db.ExecContext(ctx, `
		UPDATE vtis SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func queryAddLink(ctx context.Context, db executor, vtiID, linkedID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO vti_links (vti_id, linked_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		vtiID, linkedID,
	)
	return err
}

func queryGetLinks(ctx context.Context, db executor, vtiID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT linked_id FROM vti_links WHERE vti_id = $1 ORDER BY created_at ASC`,
		vtiID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var linked string
		if err := rows.Scan(&linked); err != nil {
			return nil, err
		}
		links = append(links, linked)
	}
	return links, rows.Err()
}

func queryAppendEvent(ctx context.Context, db executor, e *model.TraceEvent) error {
	var lat, lon sql.NullFloat64
	if e.Geo != nil {
		lat = sql.NullFloat64{Float64: e.Geo.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: e.Geo.Lon, Valid: true}
	}
	// recorded_at comes from the database clock so the pre/post-harvest
	// merge has a single total order.
	return db.QueryRowContext(ctx, `
		INSERT INTO trace_events (vti_id, plot_id, event_type, actor, lat, lon, payload, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, recorded_at`,
		nullString(e.VTIRef),
		nullString(e.PlotRef),
		string(e.Type),
		e.Actor,
		lat,
		lon,
		jsonbBytes(e.Payload),
		e.IsPublic,
	).Scan(&e.ID, &e.RecordedAt)
}

func queryGetEvent(ctx context.Context, db executor, id int64) (*model.TraceEvent, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM trace_events WHERE id = $1`, id)
	return scanEvent(row)
}

func queryListEventsByPlot(ctx context.Context, db executor, plotID string, preHarvestOnly bool) ([]*model.TraceEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM trace_events WHERE plot_id = $1`
	if preHarvestOnly {
		q += ` AND vti_id IS NULL`
	}
	q += ` ORDER BY recorded_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, q, plotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListEventsByVTI(ctx context.Context, db executor, vtiID string) ([]*model.TraceEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM trace_events
		WHERE vti_id = $1
		ORDER BY recorded_at ASC, id ASC`,
		vtiID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryAddAnnotation(ctx context.Context, db executor, a *model.Annotation) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO event_annotations (event_id, vti_id, is_anomaly, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		a.EventID, a.VTIRef, a.IsAnomaly, a.Reason,
	).Scan(&a.ID, &a.CreatedAt)
}

func queryListAnnotationsByVTI(ctx context.Context, db executor, vtiID string) ([]*model.Annotation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_id, vti_id, is_anomaly, reason, created_at
		FROM event_annotations
		WHERE vti_id = $1
		ORDER BY created_at ASC`,
		vtiID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

func queryListAllVTIs(ctx context.Context, db executor) ([]*model.VTI, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+vtiColumns+` FROM vtis ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVTIs(rows)
}

func queryListAllEvents(ctx context.Context, db executor) ([]*model.TraceEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+` FROM trace_events ORDER BY recorded_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListAllAnnotations(ctx context.Context, db executor) ([]*model.Annotation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, event_id, vti_id, is_anomaly, reason, created_at
		FROM event_annotations
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
