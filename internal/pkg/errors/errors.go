package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalid             = errors.New("invalid")
	ErrConflict            = errors.New("conflict")
	ErrTooMany             = errors.New("too many requests")
	ErrInternal            = errors.New("internal")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrCorpusFormat        = errors.New("corpus format error")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrEmbedUnavailable    = errors.New("embedding service unavailable")
	ErrGenerateUnavailable = errors.New("generation service unavailable")
	ErrEmbedTimeout        = errors.New("embedding request timed out")
	ErrGenerateTimeout     = errors.New("generation request timed out")
	ErrNotReady            = errors.New("pipeline not ready")
	ErrBuildFailed         = errors.New("index build failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// IsTransient reports whether err is a provider failure worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbedUnavailable) ||
		errors.Is(err, ErrGenerateUnavailable) ||
		errors.Is(err, ErrEmbedTimeout) ||
		errors.Is(err, ErrGenerateTimeout)
}
