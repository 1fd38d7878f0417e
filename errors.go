package tupledb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaRequired is returned by Open when the backend holds no document
	// and no schema was supplied.
	ErrSchemaRequired = errors.New("tupledb: schema must be specified for a new store")

	// ErrClosed is returned for operations submitted after Stop completed.
	ErrClosed = errors.New("tupledb: store stopped")

	// ErrKilled is returned for operations abandoned or submitted after Kill.
	ErrKilled = errors.New("tupledb: store killed")
)

// DataError reports a persisted document that cannot be decoded.
type DataError struct {
	Source string
	Data   []byte
	Err    error
	Msg    string
}

func dataErrf(source string, data []byte, err error, format string, args ...any) error {
	return &DataError{source, data, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	var buf strings.Builder
	if e.Source != "" {
		buf.WriteString(e.Source)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	if n == 0 {
		return buf.String()
	}
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, ": (%d) %q", n, e.Data)
	} else {
		fmt.Fprintf(&buf, ": (%d) %q...%q", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// FieldError reports a write naming a field the schema does not have.
type FieldError struct {
	Key   string
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("tupledb: %s.%s: %s", e.Key, e.Field, e.Msg)
}

// SchemaError reports an invalid schema definition or document.
type SchemaError struct {
	Field string
	Msg   string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "tupledb: schema: " + e.Msg
	}
	return fmt.Sprintf("tupledb: schema: %s: %s", e.Field, e.Msg)
}

// SchemaMismatchError is returned in strict mode when the supplied schema
// differs from the persisted one.
type SchemaMismatchError struct {
	Persisted *Schema
	Supplied  *Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("tupledb: supplied schema [%v] differs from persisted schema [%v]", e.Supplied, e.Persisted)
}
