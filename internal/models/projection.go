package models

// ProjectionKind names the three terminal read-model shapes.
type ProjectionKind string

const (
	ProjectionEmpty           ProjectionKind = "empty"
	ProjectionModelRegistered ProjectionKind = "model_registered"
	ProjectionFullReport      ProjectionKind = "full_report"
)

// ResultProjection is the external-facing read model derived from a workflow.
// Model is set for model_registered and full_report; Drift only for
// full_report; Patch only when synthesis produced one (a full report with no
// patch is a valid terminal state: drift found, no corrective patch available).
type ResultProjection struct {
	Kind  ProjectionKind `json:"kind"`
	Model *MLModel       `json:"model,omitempty"`
	Drift *DriftResult   `json:"driftResult,omitempty"`
	Patch *Patch         `json:"patch,omitempty"`
}
