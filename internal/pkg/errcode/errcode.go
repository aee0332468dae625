package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrInvalidConfig
	ErrCorpusFormat
	ErrNotReady
	ErrBuildFailed
	ErrAIUnavailable
	ErrRebuildRunning
)
