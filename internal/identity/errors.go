package identity

import "errors"

var (
	ErrNotFound           = errors.New("identity: not found")
	ErrConflict           = errors.New("identity: email already registered")
	ErrValidation         = errors.New("identity: invalid input")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrAccountPending     = errors.New("identity: account pending approval")
	ErrUnauthorized       = errors.New("identity: unauthorized")
)
