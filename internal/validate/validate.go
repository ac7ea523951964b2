// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate wraps a single shared validator instance so every
// domain package validates input structs the same way: `validate:"..."`
// struct tags checked with go-playground/validator before a command is
// allowed to touch the store.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/daniell-olaitan/sensorhub/internal/apperr"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its `validate` tags and, on failure, returns
// an apperr.KindInvalid error naming every failing field.
func Struct(resource string, s any) error {
	if err := v.Struct(s); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperr.Wrap(apperr.KindInvalid, resource, err)
		}

		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return apperr.Invalid(resource, strings.Join(msgs, "; "))
	}
	return nil
}
