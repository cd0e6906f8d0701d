package errs

import (
	"errors"
	"fmt"
)

// ChainError attributes an upstream failure to one chain.
type ChainError struct {
	ChainID int
	Op      string
	Err     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("[Chain %d] %s: %v", e.ChainID, e.Op, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

// ForChain wraps err as a ChainError for op on chainID. A nil err stays nil.
func ForChain(chainID int, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ChainError{ChainID: chainID, Op: op, Err: err}
}

// ChainOf reports the chain the outermost ChainError in err's tree names.
func ChainOf(err error) (int, bool) {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.ChainID, true
	}
	return 0, false
}
