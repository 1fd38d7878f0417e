package tupledb

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSchema(t *testing.T) {
	scm := MustSchema(WithDefault("score", 0.0), Name("name"), WithDefault("tags", []any{}))

	deepEqual(t, scm.Len(), 3)
	deepEqual(t, scm.Fields(), []string{"score", "name", "tags"})

	i, ok := scm.Index("name")
	deepEqual(t, i, 1)
	deepEqual(t, ok, true)
	_, ok = scm.Index("nope")
	deepEqual(t, ok, false)

	deepEqual(t, scm.HasDefault(0), true)
	deepEqual(t, scm.HasDefault(1), false)
	deepEqual(t, scm.Default(0), any(0.0))
	deepEqual(t, scm.Default(1), nil)
	deepEqual(t, scm.String(), `score=0,name,tags=[]`)
}

func TestSchema_DefaultsAreCopies(t *testing.T) {
	scm := MustSchema(WithDefault("tags", []any{"a"}), WithDefault("meta", map[string]any{"n": 1.0}))

	tags := scm.Default(0).([]any)
	tags[0] = "mutated"
	deepEqual(t, scm.Default(0), any([]any{"a"}))

	meta := scm.Default(1).(map[string]any)
	meta["n"] = 2.0
	deepEqual(t, scm.Default(1), any(map[string]any{"n": 1.0}))
}

func TestNewSchema_Errors(t *testing.T) {
	var se *SchemaError
	_, err := NewSchema(Name("a"), Name("a"))
	if !errors.As(err, &se) || se.Field != "a" {
		t.Fatalf("NewSchema(dup) err = %v, wanted SchemaError for field a", err)
	}
	_, err = NewSchema(Name(""))
	if !errors.As(err, &se) {
		t.Fatalf("NewSchema(empty) err = %v, wanted SchemaError", err)
	}
}

func TestParseField(t *testing.T) {
	o := func(input string, e Field) {
		t.Helper()
		a, err := ParseField(input)
		if err != nil {
			t.Errorf("ParseField(%q) failed: %v", input, err)
			return
		}
		deepEqual(t, a, e)
	}
	o("name", Name("name"))
	o(" name ", Name("name"))
	o("score=0", WithDefault("score", 0.0))
	o("title=untitled", WithDefault("title", "untitled"))
	o(`title="x"`, WithDefault("title", "x"))
	o("tags=[]", WithDefault("tags", []any{}))
	o("flag=true", WithDefault("flag", true))

	if _, err := ParseField("=5"); err == nil {
		t.Errorf("ParseField(=5) err = nil, wanted error")
	}
}

func TestSchema_JSON(t *testing.T) {
	scm := MustSchema(Name("name"), WithDefault("score", 0.0))
	raw := must(json.Marshal(scm))
	deepEqual(t, string(raw), `{"index":{"name":0,"score":1},"defaults":{"score":0},"list":["name","score"]}`)

	var back Schema
	ensure(json.Unmarshal(raw, &back))
	deepEqual(t, back.Fields(), scm.Fields())
	deepEqual(t, back.Equal(scm), true)
	deepEqual(t, back.Fingerprint(), scm.Fingerprint())
}

func TestSchema_UnmarshalRejectsInconsistentDocs(t *testing.T) {
	o := func(name, input string) {
		t.Helper()
		var scm Schema
		err := json.Unmarshal([]byte(input), &scm)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Errorf("%s: err = %v, wanted SchemaError", name, err)
		}
	}
	o("index disagrees", `{"index":{"a":1,"b":0},"defaults":{},"list":["a","b"]}`)
	o("unknown default", `{"index":{"a":0},"defaults":{"z":1},"list":["a"]}`)
	o("duplicate", `{"index":{"a":0},"defaults":{},"list":["a","a"]}`)
	o("list name not indexed", `{"index":{"a":0},"defaults":{},"list":["a","b"]}`)
	o("indexed name not listed", `{"index":{"a":0,"z":1},"defaults":{},"list":["a"]}`)
}

func TestSchema_Equal(t *testing.T) {
	a := MustSchema(Name("x"), WithDefault("y", 1))
	deepEqual(t, a.Equal(MustSchema(Name("x"), WithDefault("y", 1.0))), true)
	deepEqual(t, a.Equal(MustSchema(Name("x"), WithDefault("y", 2))), false)
	deepEqual(t, a.Equal(MustSchema(WithDefault("y", 1), Name("x"))), false)
	deepEqual(t, a.Equal(MustSchema(Name("x"), Name("y"))), false)
	deepEqual(t, a.Equal(nil), false)
}
