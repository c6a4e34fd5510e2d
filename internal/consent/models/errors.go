package models

import "errors"

// Write failures surfaced as UPDATE_FAILED / CREATE_FAILED.
var (
	ErrCreateFailed = errors.New("failed to create consent record")
	ErrUpdateFailed = errors.New("failed to update consent record")
)
