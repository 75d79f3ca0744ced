package session

import "github.com/driftgate/backend/internal/models"

// project is the pure read-model translation: nothing yet, a plain model
// registration, or the full drift report. It is re-derivable at any time and
// holds no state of its own.
//
// A full report without a patch is valid: drift was found but synthesis was
// skipped, declined, or produced nothing usable.
func project(model *models.MLModel, drift *models.DriftResult, patch *models.Patch) models.ResultProjection {
	if model == nil {
		return models.ResultProjection{Kind: models.ProjectionEmpty}
	}
	if drift == nil {
		return models.ResultProjection{
			Kind:  models.ProjectionModelRegistered,
			Model: model,
		}
	}
	return models.ResultProjection{
		Kind:  models.ProjectionFullReport,
		Model: model,
		Drift: drift,
		Patch: patch,
	}
}
