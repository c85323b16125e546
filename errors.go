package saveable

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnsupported is a shape error: the value is not a primitive, a uniform
	// collection, a simple dictionary or a nested object.
	ErrUnsupported = errors.New("unsupported value")

	// ErrNotOpen is returned when saving, loading or closing before Open.
	ErrNotOpen = errors.New("no root node initialized")

	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrMissingMeta      = errors.New("missing metadata")
	ErrCorrupt          = errors.New("corrupt data")

	// ErrInconsistent reports stored data that contradicts its metadata or
	// the target it is loaded into.
	ErrInconsistent   = errors.New("inconsistent data")
	ErrIncompleteDict = errors.New("incomplete dictionary")
)

// FieldError names the node and field an error happened at.
type FieldError struct {
	Node  string
	Field string
	Msg   string
	Err   error
}

func fieldErrf(node, field string, err error, format string, args ...any) error {
	return &FieldError{node, field, fmt.Sprintf(format, args...), err}
}

// FieldErrf builds a *FieldError; backends use it to report per-field failures.
func FieldErrf(node, field string, err error, format string, args ...any) error {
	return fieldErrf(node, field, err, format, args...)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (e *FieldError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Node)
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// DataError reports stored bytes that cannot be decoded.
type DataError struct {
	Data []byte
	Err  error
	Msg  string
}

func dataErrf(data []byte, err error, format string, args ...any) error {
	return &DataError{data, err, fmt.Sprintf(format, args...)}
}

// DataErrf builds a *DataError wrapping err; nil err defaults to ErrCorrupt.
func DataErrf(data []byte, err error, format string, args ...any) error {
	if err == nil {
		err = ErrCorrupt
	}
	return dataErrf(data, err, format, args...)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}
