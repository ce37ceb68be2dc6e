/*
Package req provides helper functions for HTTP request parsing and data binding.

BindJSON decodes a JSON body strictly and then runs go-playground/validator over the
destination struct, so handlers only see inputs that satisfy their `validate` tags.
*/
package req

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"duochat/internal/pkg/errs"
)

// MaxJSONBodyBytes bounds every JSON request body.
const MaxJSONBodyBytes int64 = 1 << 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance. It reports JSON field names
// rather than Go field names in its errors.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst
// and validates it.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat).WithDetail(err.Error())
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return ValidateStruct(dst)
}

// ValidateStruct runs tag validation on v and converts the first failure into ErrInvalidParams.
func ValidateStruct(v any) *errs.CustomError {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errs.NewError(errs.ErrInvalidParams).
			WithDetail(fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}

	return errs.NewError(errs.ErrInvalidParams).WithDetail(err.Error())
}
