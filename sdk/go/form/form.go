// Package form tracks field values, errors and touched flags for one form.
//
// Snapshots returned by Form are never mutated afterwards: every update builds
// a new map for the part it touches and shares the others.
package form

import (
	"maps"
	"sync"
)

// Snapshot is an immutable view of the form state.
type Snapshot struct {
	Values  map[string]string
	Errors  map[string]string
	Touched map[string]bool
}

// Form is safe for concurrent use.
type Form struct {
	mu      sync.Mutex
	initial map[string]string
	cur     Snapshot
}

// New returns a form seeded with a copy of initial.
func New(initial map[string]string) *Form {
	seed := maps.Clone(initial)
	if seed == nil {
		seed = map[string]string{}
	}
	return &Form{
		initial: seed,
		cur:     emptySnapshot(seed),
	}
}

func emptySnapshot(values map[string]string) Snapshot {
	return Snapshot{
		Values:  values,
		Errors:  map[string]string{},
		Touched: map[string]bool{},
	}
}

// HandleChange sets one field's value, leaving all other fields as they are.
func (f *Form) HandleChange(name, value string) {
	f.setValue(name, value)
}

// SetFieldValue overwrites one field programmatically, e.g. to seed the form
// from a loaded resource.
func (f *Form) SetFieldValue(name, value string) {
	f.setValue(name, value)
}

func (f *Form) setValue(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values := maps.Clone(f.cur.Values)
	values[name] = value
	f.cur.Values = values
}

// HandleBlur marks a field touched.
func (f *Form) HandleBlur(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	touched := maps.Clone(f.cur.Touched)
	touched[name] = true
	f.cur.Touched = touched
}

// SetFieldError sets the message for one field. An empty message clears it.
func (f *Form) SetFieldError(name, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	errs := maps.Clone(f.cur.Errors)
	if message == "" {
		delete(errs, name)
	} else {
		errs[name] = message
	}
	f.cur.Errors = errs
}

// ClearErrors drops all field errors.
func (f *Form) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur.Errors = map[string]string{}
}

// ResetForm restores the initial values and clears errors and touched flags.
func (f *Form) ResetForm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur = emptySnapshot(f.initial)
}

// Snapshot returns the current state. Callers must not modify the maps.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

// Values returns a copy of the current values.
func (f *Form) Values() map[string]string { return maps.Clone(f.Snapshot().Values) }

// Errors returns a copy of the current errors.
func (f *Form) Errors() map[string]string { return maps.Clone(f.Snapshot().Errors) }

// Touched returns a copy of the touched flags.
func (f *Form) Touched() map[string]bool { return maps.Clone(f.Snapshot().Touched) }

// Value returns one field's value.
func (f *Form) Value(name string) string { return f.Snapshot().Values[name] }

// Error returns one field's error message.
func (f *Form) Error(name string) string { return f.Snapshot().Errors[name] }

// HasErrors reports whether any field has an error.
func (f *Form) HasErrors() bool { return len(f.Snapshot().Errors) > 0 }
