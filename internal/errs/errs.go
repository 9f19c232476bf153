// Package errs defines the error taxonomy shared by the dataset loader.
// Every error returned by the loader matches exactly one of the sentinels
// below through errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch means the remote archive could not be downloaded or unpacked.
	ErrFetch = errors.New("dataset fetch failed")
	// ErrCorruptDataset means the local collection exists but cannot be indexed.
	// Re-fetching the dataset (fedigraph.RemoveDataset, then New) is the only
	// remedy.
	ErrCorruptDataset = errors.New("corrupt dataset")

	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnknownGraphType = errors.New("unknown graph type")
	ErrUnknownDate      = errors.New("unknown date")

	// ErrMalformedArtifact is returned by the materializer; the parse error
	// that caused it stays in the chain.
	ErrMalformedArtifact = errors.New("malformed artifact")
	ErrParse             = errors.New("parse error")
)

// DatasetError attaches the operation and path to one of the sentinels.
type DatasetError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *DatasetError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		b.WriteString(" (")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DatasetError) Unwrap() error { return e.Err }

func (e *DatasetError) Is(target error) bool { return target == e.Kind }

// Fetch wraps a transport or extraction failure.
func Fetch(op string, err error) error {
	return &DatasetError{Kind: ErrFetch, Op: op, Err: err}
}

// Corrupt reports a collection that cannot be indexed.
func Corrupt(path, format string, args ...any) error {
	return &DatasetError{Kind: ErrCorruptDataset, Op: "index", Path: path, Err: fmt.Errorf(format, args...)}
}

// Parse reports a malformed line in a serialized artifact. Line is 1-based;
// zero means the failure is not tied to a line.
func Parse(path string, line int, err error) error {
	if line > 0 {
		err = fmt.Errorf("line %d: %w", line, err)
	}
	return &DatasetError{Kind: ErrParse, Op: "parse", Path: path, Err: err}
}

// Malformed wraps a parse failure for the caller of the materializer.
func Malformed(path string, err error) error {
	return &DatasetError{Kind: ErrMalformedArtifact, Op: "materialize", Path: path, Err: err}
}

// UnknownCoordinateError is returned when a query names a platform, graph
// type or date missing from the catalog. Valid lists the accepted values.
type UnknownCoordinateError struct {
	Kind  error
	Value string
	Scope string
	Valid []string
}

func (e *UnknownCoordinateError) Error() string {
	msg := fmt.Sprintf("%s %q", e.Kind.Error(), e.Value)
	if e.Scope != "" {
		msg += " for " + e.Scope
	}
	if len(e.Valid) == 0 {
		return msg
	}
	return msg + " (valid: " + strings.Join(e.Valid, ", ") + ")"
}

func (e *UnknownCoordinateError) Is(target error) bool { return target == e.Kind }

func UnknownPlatform(value string, valid []string) error {
	return &UnknownCoordinateError{Kind: ErrUnknownPlatform, Value: value, Valid: valid}
}

func UnknownGraphType(platform, value string, valid []string) error {
	return &UnknownCoordinateError{Kind: ErrUnknownGraphType, Value: value, Scope: platform, Valid: valid}
}

func UnknownDate(platform, graphType, value string, valid []string) error {
	return &UnknownCoordinateError{Kind: ErrUnknownDate, Value: value, Scope: platform + "/" + graphType, Valid: valid}
}

// Options returns the valid values carried by a coordinate error, if any.
func Options(err error) []string {
	var ce *UnknownCoordinateError
	if errors.As(err, &ce) {
		return ce.Valid
	}
	return nil
}
