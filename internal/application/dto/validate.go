package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"fraud-ledger/internal/domain/event"
)

// ErrInvalidRequest wraps every request validation failure
var ErrInvalidRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks a request against its struct tags
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: field %s failed %s", ErrInvalidRequest, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// Metadata converts the client context into event metadata
func (c ClientContext) Metadata(userID string) (event.Metadata, error) {
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return event.Metadata{}, fmt.Errorf("%w: latitude and longitude must be given together", ErrInvalidRequest)
	}
	return event.Metadata{
		UserID:    userID,
		IPAddress: c.IPAddress,
		DeviceID:  c.DeviceID,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		UserAgent: c.UserAgent,
	}, nil
}
