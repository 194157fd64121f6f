package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrOpenDisputeExists = errors.New("booking already has an open dispute")
)
