package errs

import (
	"errors"
	"fmt"
	"log/slog"
)

// Wrap adds context and keeps the chain intact for errors.Is/As.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context and keeps the chain intact.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	args = append(args, err)
	return fmt.Errorf(format+": %w", args...)
}

type loggable struct{ err error }

// Loggable makes slog encode the error as a group with its unwrap chain.
// Usage: slog.Any("err", errs.Loggable(err))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}

	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.Any("chain", Chain(l.err)),
	}
	if chainID, ok := ChainOf(l.err); ok {
		attrs = append(attrs, slog.Int("chain_id", chainID))
	}
	return slog.GroupValue(attrs...)
}

// Chain returns the unwrap chain as strings (outer -> inner). Joined errors
// contribute each of their members.
func Chain(err error) []string {
	if err == nil {
		return nil
	}

	out := make([]string, 0, 4)
	for e := err; e != nil; e = errors.Unwrap(e) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				out = append(out, inner.Error())
			}
			break
		}
		out = append(out, e.Error())
	}
	return out
}
