package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apierrors "tradeledger/internal/errors"
)

const maxBodySize = 1 << 20 // 1MB

// newValidator builds the request validator with JSON field names in
// error messages.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. The returned APIError is ready to render.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst interface{}) *apierrors.APIError {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}

	if err := v.Struct(dst); err != nil {
		var fields []apierrors.ValidationError
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, apierrors.ValidationError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed on the %q rule", fe.Tag()),
				})
			}
			return apierrors.NewValidationErrors(fields)
		}
		return apierrors.InvalidRequestWithError(err)
	}

	return nil
}

// parseDate parses a required 2006-01-02 date field.
func parseDate(field, value string) (time.Time, *apierrors.APIError) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apierrors.ErrValidation(field, "must be a 2006-01-02 date")
	}
	return t, nil
}

// parseDecimal parses a required decimal string field.
func parseDecimal(field, value string) (decimal.Decimal, *apierrors.APIError) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, apierrors.ErrValidation(field, "must be a decimal number")
	}
	return d, nil
}

// parseOptionalDate parses a 2006-01-02 date query parameter, nil when
// absent.
func parseOptionalDate(field, value string) (*time.Time, *apierrors.APIError) {
	if value == "" {
		return nil, nil
	}
	t, apiErr := parseDate(field, value)
	if apiErr != nil {
		return nil, apiErr
	}
	return &t, nil
}
