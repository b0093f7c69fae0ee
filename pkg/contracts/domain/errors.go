package domain

import "errors"

var (
	// ErrMissingColumn is returned when an input table lacks a required column
	ErrMissingColumn = errors.New("missing required column")
)
