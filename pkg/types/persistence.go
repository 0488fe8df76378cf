package types

// Warehouse outcome reasons.
const (
	ReasonWarehouseDisabled = "warehouse_disabled"
	ReasonWarehouseFailed   = "warehouse_failed"
	ReasonMergeFallback     = "merge_failed_fallback_used"
	ReasonFallbackFailed    = "fallback_failed"
)

// StageResult is the outcome of one warehouse statement.
type StageResult struct {
	Stage string `json:"stage"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// WarehouseResult reports the best-effort warehouse side of a write.
// Degraded is set whenever the primary write succeeded but the warehouse
// did not take the clean path: a failed statement or the merge fallback.
// A disabled warehouse is not degraded.
type WarehouseResult struct {
	OK       bool          `json:"ok"`
	Degraded bool          `json:"degraded"`
	Reason   string        `json:"reason,omitempty"`
	Stages   []StageResult `json:"stages,omitempty"`
}

// SaveResult is returned by time-series writes.
type SaveResult struct {
	Saved     int             `json:"saved"`
	Days      []DayMetrics    `json:"-"`
	Warehouse WarehouseResult `json:"warehouse"`
}

// ProfileResult is returned by profile upserts.
type ProfileResult struct {
	Profile   *Profile        `json:"profile"`
	Warehouse WarehouseResult `json:"warehouse"`
}
