package filter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch {
		case name == "-":
			return ""
		case name == "":
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// Validator exposes the shared validator so transport DTOs are checked with
// the same configuration as filters.
func Validator() *validator.Validate { return validate }

// Validate checks s for inverted ranges, unknown enumerations and negative
// bounds. The predicate itself never fails; callers validate at the edge.
func Validate(s *Spec) error {
	if s == nil {
		return fmt.Errorf("%w: missing filter", ErrInvalidFilter)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFilter, Describe(err))
	}
	return nil
}

// Describe renders validation failures as "field: rule" pairs.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, ns+": "+rule)
	}
	return strings.Join(parts, "; ")
}
