package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"ms-livestream/internal/apperror"

	"github.com/go-playground/validator/v10"
)

// NewValidator reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs the struct tags and folds every failure into one
// apperror.ErrInvalidInput.
func ValidateStruct(ctx context.Context, v *validator.Validate, payload interface{}) error {
	err := v.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %v", apperror.ErrInvalidInput, err)
	}

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = fmt.Sprintf("invalid '%s' with value '%v'", f.Field(), f.Value())
	}
	return fmt.Errorf("%w: %s", apperror.ErrInvalidInput, strings.Join(msgs, ", "))
}
