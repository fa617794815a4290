package models

// Severity grades a detected conflict. Resource double-bookings are
// always critical; the detector has no lower tier.
type Severity string

const SeverityCritical Severity = "critical"

// ConflictRecord reports a pair of assignments fighting over one resource.
// Produced transiently by the detector; never persisted by the engine.
type ConflictRecord struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID int64        `json:"resourceId"`
	First      Assignment   `json:"first"`
	Second     Assignment   `json:"second"`
	Severity   Severity     `json:"severity"`
}
