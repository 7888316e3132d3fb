package dsmr

import "fmt"

// FieldSpec is one catalogue entry: which id to pick from a telegram,
// what to call it and how to decode its value.
type FieldSpec struct {
	ID   ObisID
	Name string
	// Unit is the unit the value is sent in, IntUnit the unit of the
	// integer form of a fixed value (kWh -> Wh).
	Unit    string
	IntUnit string
	Codec   Codec
}

// Field holds the decoded value of one FieldSpec.
type Field struct {
	spec    FieldSpec
	value   any
	present bool
}

func (f *Field) ID() ObisID      { return f.spec.ID }
func (f *Field) Name() string    { return f.spec.Name }
func (f *Field) Unit() string    { return f.spec.Unit }
func (f *Field) IntUnit() string { return f.spec.IntUnit }
func (f *Field) Present() bool   { return f.present }

// Value is nil until the field has been decoded from a telegram.
func (f *Field) Value() any { return f.value }

func (f *Field) reset() {
	f.value = nil
	f.present = false
}

// Registry is the set of fields a caller wants out of a telegram. Build
// it once and reuse it; every parse starts by clearing presence. A
// registry must not be shared by concurrent parses.
type Registry struct {
	fields []*Field
	byID   map[ObisID]*Field
	byName map[string]*Field
}

// NewRegistry fails when two specs share an id or a name, or a spec has no
// codec.
func NewRegistry(specs []FieldSpec) (*Registry, error) {
	r := &Registry{
		fields: make([]*Field, 0, len(specs)),
		byID:   make(map[ObisID]*Field, len(specs)),
		byName: make(map[string]*Field, len(specs)),
	}
	for _, spec := range specs {
		if spec.Codec == nil {
			return nil, fmt.Errorf("field %q (%s) has no codec", spec.Name, spec.ID)
		}
		if other, ok := r.byID[spec.ID]; ok {
			return nil, fmt.Errorf("field %q uses obis id %s of field %q", spec.Name, spec.ID, other.Name())
		}
		if _, ok := r.byName[spec.Name]; ok {
			return nil, fmt.Errorf("duplicate field name %q", spec.Name)
		}
		f := &Field{spec: spec}
		r.fields = append(r.fields, f)
		r.byID[spec.ID] = f
		r.byName[spec.Name] = f
	}
	return r, nil
}

func MustNewRegistry(specs []FieldSpec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the field registered for id, or nil.
func (r *Registry) Lookup(id ObisID) *Field {
	return r.byID[id]
}

// Field returns the field registered under name, or nil.
func (r *Registry) Field(name string) *Field {
	return r.byName[name]
}

func (r *Registry) ResetPresence() {
	for _, f := range r.fields {
		f.reset()
	}
}

func (r *Registry) AllPresent() bool {
	for _, f := range r.fields {
		if !f.present {
			return false
		}
	}
	return true
}

// ForEach visits every field in registration order, present or not.
func (r *Registry) ForEach(visit func(f *Field)) {
	for _, f := range r.fields {
		visit(f)
	}
}

func (r *Registry) Len() int {
	return len(r.fields)
}

// Get returns the value of a present field.
func (r *Registry) Get(name string) (any, bool) {
	return presentValue(r.byName[name])
}

func (r *Registry) GetByID(id ObisID) (any, bool) {
	return presentValue(r.byID[id])
}

func presentValue(f *Field) (any, bool) {
	if f == nil || !f.present {
		return nil, false
	}
	return f.value, true
}

func (r *Registry) String(name string) (string, bool) {
	return getAs[string](r, name)
}

func (r *Registry) Uint(name string) (uint32, bool) {
	return getAs[uint32](r, name)
}

func (r *Registry) Fixed(name string) (FixedValue, bool) {
	v, ok := r.Get(name)
	if !ok {
		return FixedValue{}, false
	}
	switch fv := v.(type) {
	case FixedValue:
		return fv, true
	case TimestampedFixedValue:
		return fv.FixedValue, true
	}
	return FixedValue{}, false
}

func (r *Registry) TimestampedFixed(name string) (TimestampedFixedValue, bool) {
	return getAs[TimestampedFixedValue](r, name)
}

func getAs[T any](r *Registry, name string) (T, bool) {
	var zero T
	v, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
