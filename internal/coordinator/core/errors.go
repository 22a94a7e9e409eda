package core

import "errors"

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrWorkerNotFound    = errors.New("worker not found")
	ErrJobNotCancellable = errors.New("job is not cancellable")
	ErrJobNotBillable    = errors.New("job has no computable cost")

	ErrInvalidEmail  = errors.New("invalid email address")
	ErrEmailNotFound = errors.New("email not found")
	ErrLoginFailed   = errors.New("incorrect password")
)
