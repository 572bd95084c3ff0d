package editor

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeNotOpen            = "EDITOR_NOT_OPEN"
	ErrCodeIncompleteWorkflow = "EDITOR_INCOMPLETE_WORKFLOW"
	ErrCodeUnknownTransition  = "EDITOR_UNKNOWN_TRANSITION"
	ErrCodeInvalidStateID     = "EDITOR_INVALID_STATE_ID"
)

var (
	ErrNotOpen = apperrors.New("editor session has no open workflow", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNotOpen)
	ErrIncompleteWorkflow = apperrors.New("workflow needs both configuration and layout", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeIncompleteWorkflow)
	ErrUnknownTransition = apperrors.New("unknown transition", apperrors.CategoryNotFound).
				WithTextCode(ErrCodeUnknownTransition)
	ErrInvalidStateID = apperrors.New("state id required", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidStateID)
)

func unknownTransition(id string) error {
	return ErrUnknownTransition.Clone().WithMetadata(map[string]any{"transition": id})
}
