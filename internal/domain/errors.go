package domain

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrThreadNotFound = errors.New("thread not found")
)
