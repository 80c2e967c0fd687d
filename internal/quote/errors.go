package quote

import (
	"errors"
	"fmt"
)

var ErrRetrievalExhausted = errors.New("quote retrieval exhausted")

// ExhaustedError is returned once every round has failed. Last is the error
// of the final candidate tried.
type ExhaustedError struct {
	Rounds int
	Last   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d rounds: %v", ErrRetrievalExhausted, e.Rounds, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrRetrievalExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }
