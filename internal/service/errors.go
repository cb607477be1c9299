package service

import "errors"

var (
	ErrInvalidPlan  = errors.New("invalid plan")
	ErrInvalidInput = errors.New("invalid input")
)
