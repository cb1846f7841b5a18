package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes engine failures.
type RuntimeErrorCode string

const (
	// ErrCodeBadProgram means the program failed load-time validation:
	// out-of-range slot, expression or instance references, or a slab
	// layout that does not cover every slot.
	ErrCodeBadProgram RuntimeErrorCode = "BAD_PROGRAM"

	// ErrCodeBadStep means a schedule step referenced a variant arm its
	// kind does not use. The compiler never emits these; seeing one means
	// the program bytes were corrupted between compile and run.
	ErrCodeBadStep RuntimeErrorCode = "BAD_STEP"
)

// RuntimeError is a structured engine failure. The engine validates the
// whole program once at load; the tick path itself does not produce
// errors, so any RuntimeError surfaces before the first frame.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Details map[string]string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBadProgram reports whether err is a load-time validation failure.
// Uses errors.As to handle wrapped errors.
func IsBadProgram(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeBadProgram
	}
	return false
}

func badProgram(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadProgram,
		Message: fmt.Sprintf(format, args...),
	}
}
