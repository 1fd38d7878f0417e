package tupledb

// Record is the positional representation of an entry: one slot per schema
// field, in schema order. Unset slots hold nil.
type Record []any

// View is the caller-facing, field-name-keyed projection of a Record.
// Views handed out by a store are private copies.
type View map[string]any

func (v View) Clone() View {
	if v == nil {
		return nil
	}
	out := make(View, len(v))
	for k, e := range v {
		out[k] = cloneValue(e)
	}
	return out
}

// materialize builds a full view of rec. A nil rec (entry never created)
// resolves every field to its default.
func materialize(scm *Schema, rec Record) View {
	view := make(View, scm.Len())
	for i, name := range scm.names {
		view[name] = resolveSlot(scm, rec, i)
	}
	return view
}

// resolveSlot returns a copy of rec[i], or of the field default when there
// is no record.
func resolveSlot(scm *Schema, rec Record, i int) any {
	if rec != nil && i < len(rec) {
		return cloneValue(rec[i])
	}
	return scm.Default(i)
}

// checkFields rejects writes that name fields outside the schema.
func checkFields(scm *Schema, key string, fields map[string]any) error {
	for name := range fields {
		if _, ok := scm.index[name]; !ok {
			return &FieldError{Key: key, Field: name, Msg: "unknown field"}
		}
	}
	return nil
}

// commitEntry builds a fresh record: named fields take the given values,
// the rest take defaults.
func commitEntry(scm *Schema, fields map[string]any) Record {
	rec := make(Record, scm.Len())
	for i, name := range scm.names {
		if v, ok := fields[name]; ok {
			rec[i] = cloneValue(v)
		} else {
			rec[i] = scm.Default(i)
		}
	}
	return rec
}

// commitPartial applies fields on top of prev. Fields not named keep their
// prior value, or take defaults when there is no prior record. prev is not
// modified.
func commitPartial(scm *Schema, prev Record, fields map[string]any) Record {
	if prev == nil {
		return commitEntry(scm, fields)
	}
	rec := make(Record, scm.Len())
	copy(rec, prev)
	for name, v := range fields {
		rec[scm.index[name]] = cloneValue(v)
	}
	return rec
}
