package model

import "time"

// Annotation is an append-only anomaly verdict attached to a ledger event.
// Verdicts are stored separately from events so the event records stay
// byte-identical forever; readers join annotations on at reconstruction time.
type Annotation struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	VTIRef    string    `json:"vti_ref"`
	IsAnomaly bool      `json:"is_anomaly"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
