package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	reactangosdk "reactango/sdk/go"
	"reactango/sdk/go/form"
)

const (
	fieldName  = "name"
	fieldEmail = "email"
	fieldFood  = "favorite_food"
)

type formField struct {
	name  string
	label string
	input textinput.Model
}

// userForm is a text-input rendition of a form.Form with the user fields.
type userForm struct {
	title      string
	form       *form.Form
	fields     []formField
	focus      int
	submitting bool
	err        string
}

func newUserForm(title string) *userForm {
	f := &userForm{
		title: title,
		form:  form.New(map[string]string{fieldName: "", fieldEmail: "", fieldFood: ""}),
	}
	for _, fd := range []struct{ name, label, placeholder string }{
		{fieldName, "Name", "Jane Doe"},
		{fieldEmail, "Email", "jane@example.com"},
		{fieldFood, "Favorite food", "optional"},
	} {
		ti := textinput.New()
		ti.Placeholder = fd.placeholder
		ti.CharLimit = 100
		ti.Width = 40
		ti.Prompt = ""
		f.fields = append(f.fields, formField{name: fd.name, label: fd.label, input: ti})
	}
	f.fields[0].input.Focus()
	return f
}

// seed loads u into the form without marking any field touched.
func (f *userForm) seed(u reactangosdk.User) {
	values := map[string]string{
		fieldName:  u.Name,
		fieldEmail: u.Email,
		fieldFood:  "",
	}
	if u.FavoriteFood != nil {
		values[fieldFood] = *u.FavoriteFood
	}
	for i := range f.fields {
		v := values[f.fields[i].name]
		f.form.SetFieldValue(f.fields[i].name, v)
		f.fields[i].input.SetValue(v)
	}
}

// reset restores the initial values and clears errors.
func (f *userForm) reset() {
	f.form.ResetForm()
	for i := range f.fields {
		f.fields[i].input.SetValue(f.form.Value(f.fields[i].name))
	}
	f.err = ""
	f.submitting = false
	f.setFocus(0)
}

func (f *userForm) setFocus(i int) {
	if n := len(f.fields); i < 0 {
		i = n - 1
	} else if i >= n {
		i = 0
	}
	if i != f.focus {
		f.form.HandleBlur(f.fields[f.focus].name)
	}
	for j := range f.fields {
		if j == i {
			f.fields[j].input.Focus()
		} else {
			f.fields[j].input.Blur()
		}
	}
	f.focus = i
}

// update routes a key to the focused input and mirrors the new value into
// the form state.
func (f *userForm) update(msg tea.KeyMsg, keys keyMap) tea.Cmd {
	switch {
	case key.Matches(msg, keys.NextField):
		f.setFocus(f.focus + 1)
		return nil
	case key.Matches(msg, keys.PrevField):
		f.setFocus(f.focus - 1)
		return nil
	}
	field := &f.fields[f.focus]
	var cmd tea.Cmd
	field.input, cmd = field.input.Update(msg)
	if v := field.input.Value(); v != f.form.Value(field.name) {
		f.form.HandleChange(field.name, v)
		f.form.SetFieldError(field.name, "")
	}
	return cmd
}

// validate records required-field errors and reports whether the form can
// be submitted. The server still has the final say.
func (f *userForm) validate() bool {
	f.form.ClearErrors()
	f.err = ""
	if strings.TrimSpace(f.form.Value(fieldName)) == "" {
		f.form.SetFieldError(fieldName, "Name is required")
	}
	email := strings.TrimSpace(f.form.Value(fieldEmail))
	switch {
	case email == "":
		f.form.SetFieldError(fieldEmail, "Email is required")
	case !strings.Contains(email, "@"):
		f.form.SetFieldError(fieldEmail, "Enter a valid email")
	}
	return !f.form.HasErrors()
}

// fail shows err inline, attaching it to a field when the server named one.
func (f *userForm) fail(err error) {
	f.submitting = false
	var apiErr *reactangosdk.Error
	if errors.As(err, &apiErr) && apiErr.Conflict() {
		f.form.SetFieldError(fieldEmail, apiErr.Message)
		return
	}
	f.err = err.Error()
}

func (f *userForm) createInput() reactangosdk.CreateUserInput {
	in := reactangosdk.CreateUserInput{
		Name:  strings.TrimSpace(f.form.Value(fieldName)),
		Email: strings.TrimSpace(f.form.Value(fieldEmail)),
	}
	if food := strings.TrimSpace(f.form.Value(fieldFood)); food != "" {
		in.FavoriteFood = &food
	}
	return in
}

// updateInput sends only the fields the user touched or changed.
func (f *userForm) updateInput(current reactangosdk.User) reactangosdk.UpdateUserInput {
	var in reactangosdk.UpdateUserInput
	name := strings.TrimSpace(f.form.Value(fieldName))
	if name != current.Name {
		in.Name = &name
	}
	email := strings.TrimSpace(f.form.Value(fieldEmail))
	if email != current.Email {
		in.Email = &email
	}
	food := strings.TrimSpace(f.form.Value(fieldFood))
	if food != orEmpty(current.FavoriteFood) {
		in.FavoriteFood = &food
	}
	return in
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (f *userForm) view(st styles) string {
	var b strings.Builder
	b.WriteString(st.Title.Render(f.title))
	b.WriteString("\n\n")
	snap := f.form.Snapshot()
	for i, field := range f.fields {
		label := st.Label.Render(field.label)
		if i == f.focus {
			label = st.Label.Inherit(st.Focused).Render(field.label)
		}
		b.WriteString(label)
		b.WriteString(field.input.View())
		b.WriteString("\n")
		if msg := snap.Errors[field.name]; msg != "" {
			b.WriteString(st.Label.Render(""))
			b.WriteString(st.FieldErr.Render(msg))
			b.WriteString("\n")
		}
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(st.Error.Render(f.err))
		b.WriteString("\n")
	}
	if f.submitting {
		b.WriteString("\n")
		b.WriteString(st.Muted.Render("Saving..."))
		b.WriteString("\n")
	}
	return b.String()
}
