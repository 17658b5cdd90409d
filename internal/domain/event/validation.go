package event

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

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

// Validate checks an event against the schema of its type. It never touches
// storage; a failing event is rejected before anything is written.
func Validate(evt Event) error {
	fail := func(field, reason string) error {
		return &ValidationError{EventType: evt.Type, AggregateID: evt.AggregateID, Field: field, Reason: reason}
	}

	if !Known(evt.Type) {
		return fail("event_type", "is not a known event type")
	}
	if evt.Payload == nil {
		return fail("event_data", "is required")
	}
	if evt.Payload.EventType() != evt.Type {
		return fail("event_data", "does not match event type "+string(evt.Type))
	}
	if evt.AggregateType != evt.Payload.AggregateType() {
		return fail("aggregate_type", "must be "+string(evt.Payload.AggregateType()))
	}
	if strings.TrimSpace(evt.AggregateID) == "" {
		return fail("aggregate_id", "is required")
	}
	if len(evt.AggregateID) > 100 {
		return fail("aggregate_id", "exceeds 100 characters")
	}

	if err := validate.Struct(evt.Payload); err != nil {
		return translate(err, fail)
	}
	if err := validate.Struct(evt.Metadata); err != nil {
		return translate(err, fail)
	}
	if (evt.Metadata.Latitude == nil) != (evt.Metadata.Longitude == nil) {
		return fail("metadata", "latitude and longitude must be given together")
	}
	return nil
}

func translate(err error, fail func(field, reason string) error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fail("", err.Error())
	}
	fe := verrs[0]
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return fail(fe.Field(), reason)
}
