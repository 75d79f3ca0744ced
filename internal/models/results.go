package models

// MLModel is the registration result produced by the model registry service.
// Read-only from this service's perspective once attached to a workflow.
type MLModel struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	InputFeatures []string `json:"inputFeatures"`
	OutputLabels  []string `json:"outputLabels"`
	IsActive      bool     `json:"isActive"`
}

// DriftType categorizes the kind of distribution shift detected.
type DriftType string

const (
	DriftTypeNone       DriftType = "none"
	DriftTypeCovariate  DriftType = "covariate"
	DriftTypeLabel      DriftType = "label"
	DriftTypeConcept    DriftType = "concept"
	DriftTypePrediction DriftType = "prediction"
)

// FeatureDrift flags drift on a single input feature.
type FeatureDrift struct {
	Feature string  `json:"feature"`
	Drifted bool    `json:"drifted"`
	Score   float64 `json:"score"`
}

// DriftResult is the outcome of comparing a dataset against the active model.
type DriftResult struct {
	IsDriftDetected bool           `json:"isDriftDetected"`
	DriftScore      float64        `json:"driftScore"`
	DriftType       DriftType      `json:"driftType"`
	FeatureDrifts   []FeatureDrift `json:"featureDrifts"`
}

// PatchType categorizes the corrective adjustment a synthesis run proposed.
type PatchType string

const (
	PatchTypeReweight  PatchType = "reweight"
	PatchTypeRecalib   PatchType = "recalibration"
	PatchTypeFinetune  PatchType = "finetune"
	PatchTypeThreshold PatchType = "threshold"
)

// PatchStatus tracks a synthesized patch through validation.
type PatchStatus string

const (
	PatchStatusSynthesized PatchStatus = "synthesized"
	PatchStatusValidated   PatchStatus = "validated"
	PatchStatusRejected    PatchStatus = "rejected"
)

// ValidationResult carries the safety metric the patch validator computed.
type ValidationResult struct {
	Passed      bool    `json:"passed"`
	SafetyScore float64 `json:"safetyScore"`
	Reason      string  `json:"reason,omitempty"`
}

// Patch is a corrective adjustment proposed for detected drift. A patch is
// attached to the workflow regardless of validation outcome.
type Patch struct {
	PatchType        PatchType         `json:"patchType"`
	Status           PatchStatus       `json:"status"`
	ValidationResult *ValidationResult `json:"validationResult,omitempty"`
}
