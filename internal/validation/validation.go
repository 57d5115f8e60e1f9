// Package validation holds the declarative schemas for every form the site
// accepts and turns validator failures into one message per form field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/msomdec/realty/internal/domain"
)

// FieldErrors maps a form field name to the first constraint it failed.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = e[f]
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets callers match validation failures with domain.ErrInvalidInput.
func (e FieldErrors) Unwrap() error {
	return domain.ErrInvalidInput
}

// Get returns the message for field, or "".
func (e FieldErrors) Get(field string) string {
	if e == nil {
		return ""
	}
	return e[field]
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(signUpStructLevel, SignUpForm{})
	v.RegisterStructValidation(resetPasswordStructLevel, ResetPasswordForm{})
	v.RegisterStructValidation(listingStructLevel, ListingForm{})
	return v
}

// Validate runs form through its schema. It returns nil when the form is
// valid and a FieldErrors otherwise.
func Validate(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}

	root := reflect.TypeOf(form)
	for root.Kind() == reflect.Pointer {
		root = root.Elem()
	}

	out := FieldErrors{}
	for _, fe := range verrs {
		key := formKey(fe.Namespace())
		if _, seen := out[key]; seen {
			continue
		}
		out[key] = message(fe, lookupField(root, fe.StructNamespace()))
	}
	return out
}

// formKey reduces a namespace such as "ListingForm.images[2].size" to the
// top-level form field name "images".
func formKey(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	head, _, _ := strings.Cut(rest, ".")
	head, _, _ = strings.Cut(head, "[")
	return head
}

func lookupField(t reflect.Type, structNamespace string) reflect.StructField {
	var field reflect.StructField
	segments := strings.Split(structNamespace, ".")
	for _, seg := range segments[1:] {
		seg, _, _ = strings.Cut(seg, "[")
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			break
		}
		f, ok := t.FieldByName(seg)
		if !ok {
			break
		}
		field, t = f, f.Type
	}
	return field
}

func message(fe validator.FieldError, field reflect.StructField) string {
	if custom := field.Tag.Get("message"); custom != "" {
		return custom
	}
	label := field.Tag.Get("label")
	if label == "" {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return "You must accept " + label
		}
		if fe.Kind() == reflect.Slice {
			return label + " are required"
		}
		return label + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must not exceed %s characters", label, fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("No more than %s %s are allowed", fe.Param(), strings.ToLower(label))
		}
		return fmt.Sprintf("%s must not exceed %s", label, fe.Param())
	case "gt":
		return label + " must be a positive number"
	case "gte", "lte":
		return label + " is out of range"
	case "email":
		return label + " is invalid"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "eqfield":
		return label + " does not match"
	case "ltfield":
		return label + " must be less than the regular price"
	}
	return label + " is invalid"
}
