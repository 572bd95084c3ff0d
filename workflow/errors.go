package workflow

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeNotPlainData   = "WORKFLOW_NOT_PLAIN_DATA"
	ErrCodeParseFailed    = "WORKFLOW_PARSE_FAILED"
	ErrCodeUnknownState   = "WORKFLOW_UNKNOWN_STATE"
	ErrCodeDuplicateState = "WORKFLOW_DUPLICATE_STATE"
)

var (
	ErrNotPlainData = apperrors.New("workflow payload is not plain data", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNotPlainData)
	ErrParseFailed = apperrors.New("workflow document could not be parsed", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeParseFailed)
	ErrUnknownState = apperrors.New("unknown state", apperrors.CategoryNotFound).
			WithTextCode(ErrCodeUnknownState)
	ErrDuplicateState = apperrors.New("state already exists", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateState)
)

func notPlainData(path string, source error) error {
	err := ErrNotPlainData.Clone()
	err.Source = source
	return err.WithMetadata(map[string]any{"path": path})
}

// UnknownState builds an ErrUnknownState carrying the state id.
func UnknownState(id string) error {
	return ErrUnknownState.Clone().WithMetadata(map[string]any{"state": id})
}

// DuplicateState builds an ErrDuplicateState carrying the state id.
func DuplicateState(id string) error {
	return ErrDuplicateState.Clone().WithMetadata(map[string]any{"state": id})
}
