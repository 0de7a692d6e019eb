package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInsufficientLots is returned when a disposal exceeds the recorded holdings.
var ErrInsufficientLots = errors.New("insufficient lots")

// ConfigError reports a problem with the inputs as configured, detected
// before any accounting happens.
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Msg)
}

// ParseError points at the raw record that could not be understood.
type ParseError struct {
	Path   string
	Line   int
	Record string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d: %v (record: %q)", e.Path, e.Line, e.Err, e.Record)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MergeError carries the whole group that could not be reconciled.
type MergeError struct {
	Source string
	ID     string
	Group  []Transaction
	Err    error
}

func (e *MergeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "merge %s/%s: %v", e.Source, e.ID, e.Err)
	for _, t := range e.Group {
		fmt.Fprintf(&b, "\n  %s", t)
		if t.Line != "" {
			fmt.Fprintf(&b, " <- %s", t.Line)
		}
	}
	return b.String()
}

func (e *MergeError) Unwrap() error { return e.Err }

// LedgerError wraps an integrity failure with the transaction being processed.
type LedgerError struct {
	Tx  Transaction
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger: %s: %v", e.Tx, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
