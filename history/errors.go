package history

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidWorkflowID = "HISTORY_INVALID_WORKFLOW_ID"
	ErrCodeInvalidSnapshot   = "HISTORY_INVALID_SNAPSHOT"
)

var (
	ErrInvalidWorkflowID = apperrors.New("workflow id required", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidWorkflowID)
	ErrInvalidSnapshot = apperrors.New("workflow cannot be recorded", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidSnapshot)
)

func invalidSnapshot(workflowID string, source error) error {
	err := ErrInvalidSnapshot.Clone()
	err.Source = source
	return err.WithMetadata(map[string]any{"workflow_id": workflowID})
}

