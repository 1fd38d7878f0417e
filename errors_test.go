package tupledb

import (
	"errors"
	"strings"
	"testing"
)

func TestDataError_ErrorAndUnwrap(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := dataErrf("db.json", []byte{0xAA, 0xBB}, inner, "oops %d", 1)
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("err = %T, wanted *DataError", err)
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		s := err.Error()
		if !strings.HasPrefix(s, "db.json: oops 1: inner") || !strings.Contains(s, "(2)") {
			t.Fatalf("err.Error() = %q, wanted source, message, cause and (2)", s)
		}
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		err := dataErrf("", data, nil, "oops")
		s := err.Error()
		if !strings.HasPrefix(s, "oops") || !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
	})

	t.Run("no data", func(t *testing.T) {
		deepEqual(t, dataErrf("x", nil, nil, "bad").Error(), "x: bad")
	})
}

func TestFieldError(t *testing.T) {
	err := &FieldError{Key: "alice", Field: "age", Msg: "unknown field"}
	deepEqual(t, err.Error(), "tupledb: alice.age: unknown field")
}

func TestSchemaError(t *testing.T) {
	deepEqual(t, (&SchemaError{Msg: "empty field name"}).Error(), "tupledb: schema: empty field name")
	deepEqual(t, (&SchemaError{Field: "a", Msg: "duplicate field"}).Error(), "tupledb: schema: a: duplicate field")
}

func TestSchemaMismatchError(t *testing.T) {
	err := &SchemaMismatchError{
		Persisted: MustSchema(Name("a")),
		Supplied:  MustSchema(Name("b")),
	}
	deepEqual(t, err.Error(), "tupledb: supplied schema [b] differs from persisted schema [a]")
}

func TestPanicBecomesError(t *testing.T) {
	v, err := safelyCall(func() (any, error) {
		panic("boom")
	})
	if v != nil || err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("safelyCall = (%v, %v), wanted panic error", v, err)
	}
}
