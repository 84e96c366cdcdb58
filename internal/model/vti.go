package model

import (
	"time"
)

// MetadataFarmField is the metadata key that carries the originating
// field-plot id for identifiers minted by a harvest transition. History
// reconstruction depends on it; once set it must never change.
const MetadataFarmField = "farmFieldId"

// VTIType classifies an identifier. Well-known constants are provided below,
// but types are extensible; splits and merges may introduce new ones.
type VTIType string

const (
	TypeFarmBatch      VTIType = "farm_batch"
	TypeProcessedBatch VTIType = "processed_batch"
	TypeRetailUnit     VTIType = "retail_unit"
)

// String returns the string representation of the VTI type.
func (t VTIType) String() string {
	return string(t)
}

// IsValid reports whether the VTI type is a non-empty string.
// Types are extensible, so any non-empty value is accepted.
func (t VTIType) IsValid() bool {
	return t != ""
}

// VTIStatus is the mutable lifecycle flag of an identifier.
type VTIStatus string

const (
	StatusActive   VTIStatus = "active"
	StatusConsumed VTIStatus = "consumed"
	StatusRecalled VTIStatus = "recalled"
	StatusArchived VTIStatus = "archived"
)

// String returns the string representation of the status.
func (s VTIStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s VTIStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusConsumed, StatusRecalled, StatusArchived:
		return true
	}
	return false
}

// VTI is a verifiable traceability identifier: the immutable anchor for a
// harvested batch's event history. ID, Type, and CreatedAt never change after
// creation; Status may move, and LinkedIDs is append-only.
type VTI struct {
	ID        string            `json:"id"`
	Type      VTIType           `json:"type"`
	Status    VTIStatus         `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsPublic  bool              `json:"is_public"`
	CreatedAt time.Time         `json:"created_at"`

	// LinkedIDs holds lineage edges (splits/merges) to other identifiers.
	// Populated by queries, stored in its own table.
	LinkedIDs []string `json:"linked_ids,omitempty"`
}

// FarmFieldID returns the originating field-plot id recorded at harvest
// transition, or "" for identifiers that were not minted from a plot.
func (v *VTI) FarmFieldID() string {
	if v.Metadata == nil {
		return ""
	}
	return v.Metadata[MetadataFarmField]
}
