package models

import "time"

// AssignmentState mirrors whether a ledger record is open or closed
type AssignmentState string

const (
	AssignmentAssigned   AssignmentState = "Assigned"
	AssignmentUnassigned AssignmentState = "Unassigned"
)

// Valid reports whether s is a known assignment state
func (s AssignmentState) Valid() bool {
	return s == AssignmentAssigned || s == AssignmentUnassigned
}

// AssignmentRecord is one custody interval of an asset by a holder.
// Closed records are never modified again.
type AssignmentRecord struct {
	ID           string          `json:"id"`
	AssetID      string          `json:"asset_id"`
	HolderID     string          `json:"holder_id"`
	AssignedAt   time.Time       `json:"assigned_at"`
	UnassignedAt *time.Time      `json:"unassigned_at,omitempty"`
	State        AssignmentState `json:"state"`
}

// IsOpen reports whether the record represents current custody
func (r AssignmentRecord) IsOpen() bool {
	return r.State == AssignmentAssigned
}

// Overlaps reports whether the custody interval touches [start, end].
// Open records extend to infinity.
func (r AssignmentRecord) Overlaps(start, end time.Time) bool {
	if r.AssignedAt.After(end) {
		return false
	}
	if r.UnassignedAt == nil {
		return true
	}
	return !r.UnassignedAt.Before(start)
}

// Holding is an assignment record joined with the asset it refers to
type Holding struct {
	AssignmentRecord
	Asset AssetSummary `json:"asset"`
}

// AssignRequest represents the request body for assigning an asset
type AssignRequest struct {
	HolderID string `json:"holder_id" validate:"required"`
}
