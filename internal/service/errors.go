package service

import "errors"

var (
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
