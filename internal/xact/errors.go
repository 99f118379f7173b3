package xact

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks every load failure caused by the file contents.
	ErrFormat = errors.New("invalid format")
	// ErrNotImplemented marks valid content this runtime cannot play.
	ErrNotImplemented = errors.New("not implemented")

	ErrNotFound         = errors.New("not found")
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrCueNotFound      = fmt.Errorf("cue %w", ErrNotFound)
	ErrVariableNotFound = fmt.Errorf("variable %w", ErrNotFound)
	ErrWaveBankNotFound = fmt.Errorf("wave bank %w", ErrNotFound)
	ErrTrackNotFound    = fmt.Errorf("track %w", ErrNotFound)

	ErrNotGlobal      = errors.New("variable is not global")
	ErrNotInstance    = errors.New("variable is not an instance variable")
	ErrReadOnly       = errors.New("variable is read-only")
	ErrDisposed       = errors.New("object disposed")
	ErrAlreadyPlaying = errors.New("cue already playing")
	ErrInstanceLimit  = errors.New("instance limit reached")
)

func formatError(file string, err error) error {
	if errors.Is(err, ErrFormat) || errors.Is(err, ErrNotImplemented) {
		return fmt.Errorf("%s: %w", file, err)
	}
	return fmt.Errorf("%s: %w: %w", file, ErrFormat, err)
}

func formatf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFormat}, args...)...)
}

func notImplementedf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotImplemented}, args...)...)
}
