package tupledb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Field describes one schema column. Use Name and WithDefault to build fields.
type Field struct {
	Name       string
	Default    any
	HasDefault bool
}

// Name declares a field without a default; unset values read as nil.
func Name(name string) Field {
	return Field{Name: name}
}

// WithDefault declares a field whose unset values read as a copy of def.
func WithDefault(name string, def any) Field {
	return Field{Name: name, Default: def, HasDefault: true}
}

// ParseField parses "name" or "name=default". The default is decoded as JSON
// when possible and taken verbatim as a string otherwise.
func ParseField(s string) (Field, error) {
	name, raw, hasDef := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return Field{}, &SchemaError{Field: s, Msg: "empty field name"}
	}
	if !hasDef {
		return Name(name), nil
	}
	return WithDefault(name, ParseValue(raw)), nil
}

// ParseValue decodes s as a JSON value, falling back to the string itself.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// Schema is the ordered field list shared by every record of a store.
// A Schema is immutable once built.
type Schema struct {
	names    []string
	index    map[string]int
	defaults map[int]any
}

func NewSchema(fields ...Field) (*Schema, error) {
	scm := &Schema{
		names:    make([]string, 0, len(fields)),
		index:    make(map[string]int, len(fields)),
		defaults: make(map[int]any),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, &SchemaError{Msg: "empty field name"}
		}
		if _, dup := scm.index[f.Name]; dup {
			return nil, &SchemaError{Field: f.Name, Msg: "duplicate field"}
		}
		i := len(scm.names)
		scm.index[f.Name] = i
		scm.names = append(scm.names, f.Name)
		if f.HasDefault {
			scm.defaults[i] = cloneValue(f.Default)
		}
	}
	return scm, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(fields ...Field) *Schema {
	return must(NewSchema(fields...))
}

func (scm *Schema) Len() int {
	return len(scm.names)
}

// Fields returns the field names in positional order.
func (scm *Schema) Fields() []string {
	return append([]string(nil), scm.names...)
}

func (scm *Schema) Index(name string) (int, bool) {
	i, ok := scm.index[name]
	return i, ok
}

// Default returns a fresh copy of the default of field i, or nil.
func (scm *Schema) Default(i int) any {
	def, ok := scm.defaults[i]
	if !ok {
		return nil
	}
	return cloneValue(def)
}

func (scm *Schema) HasDefault(i int) bool {
	_, ok := scm.defaults[i]
	return ok
}

func (scm *Schema) String() string {
	var buf strings.Builder
	for i, name := range scm.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(name)
		if def, ok := scm.defaults[i]; ok {
			buf.WriteByte('=')
			raw, err := json.Marshal(def)
			if err != nil {
				fmt.Fprintf(&buf, "%v", def)
			} else {
				buf.Write(raw)
			}
		}
	}
	return buf.String()
}

// Equal reports whether both schemas have the same fields, in the same order,
// with equal defaults (compared by their JSON encoding).
func (scm *Schema) Equal(other *Schema) bool {
	if scm == nil || other == nil {
		return scm == other
	}
	return scm.Fingerprint() == other.Fingerprint()
}

// Fingerprint hashes the canonical JSON document of the schema.
func (scm *Schema) Fingerprint() uint64 {
	raw, err := json.Marshal(scm)
	if err != nil {
		// defaults were accepted at construction, so they are expected to encode
		return xxhash.Sum64String(strings.Join(scm.names, "\x00"))
	}
	return xxhash.Sum64(raw)
}

type schemaDoc struct {
	Index    map[string]int `json:"index" msgpack:"i"`
	Defaults map[string]any `json:"defaults" msgpack:"d"`
	List     []string       `json:"list" msgpack:"l"`
}

func (scm *Schema) doc() *schemaDoc {
	d := &schemaDoc{
		Index:    make(map[string]int, len(scm.names)),
		Defaults: make(map[string]any, len(scm.defaults)),
		List:     scm.Fields(),
	}
	for name, i := range scm.index {
		d.Index[name] = i
	}
	for i, def := range scm.defaults {
		d.Defaults[scm.names[i]] = def
	}
	return d
}

func schemaFromDoc(d *schemaDoc) (*Schema, error) {
	fields := make([]Field, 0, len(d.List))
	for i, name := range d.List {
		pos, ok := d.Index[name]
		if !ok {
			return nil, &SchemaError{Field: name, Msg: "missing from index"}
		}
		if pos != i {
			return nil, &SchemaError{Field: name, Msg: fmt.Sprintf("index %d disagrees with list position %d", pos, i)}
		}
		if def, ok := d.Defaults[name]; ok {
			fields = append(fields, WithDefault(name, def))
		} else {
			fields = append(fields, Name(name))
		}
	}
	for name := range d.Index {
		if !containsString(d.List, name) {
			return nil, &SchemaError{Field: name, Msg: "indexed field missing from list"}
		}
	}
	for name := range d.Defaults {
		if !containsString(d.List, name) {
			return nil, &SchemaError{Field: name, Msg: "default for unknown field"}
		}
	}
	return NewSchema(fields...)
}

func (scm *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(scm.doc())
}

func (scm *Schema) UnmarshalJSON(raw []byte) error {
	var d schemaDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	parsed, err := schemaFromDoc(&d)
	if err != nil {
		return err
	}
	*scm = *parsed
	return nil
}
