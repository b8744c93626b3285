package models

import "errors"

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNoTokenFound    = errors.New("no token found for platform")
	ErrAccountNotFound = errors.New("account not found")
)
