package dashboard

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

// ErrInvalidDraft marks form input rejected before any request is sent.
var ErrInvalidDraft = errors.New("invalid form input")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// CustomerPayload validates the draft and builds the create request.
func (d CustomerDraft) CustomerPayload() (api.CustomerCreate, error) {
	if err := checkDraft(d); err != nil {
		return api.CustomerCreate{}, err
	}
	return api.CustomerCreate{
		Name:    d.Name,
		Email:   d.Email,
		Phone:   optional(d.Phone),
		Address: optional(d.Address),
	}, nil
}

// ServicePayload validates the draft, coerces its numeric fields and builds the
// create request.
func (d ServiceDraft) ServicePayload() (api.ServiceCreate, error) {
	if err := checkDraft(d); err != nil {
		return api.ServiceCreate{}, err
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(d.BasePrice), 64)
	if err != nil {
		return api.ServiceCreate{}, fmt.Errorf("%w: base_price must be a number", ErrInvalidDraft)
	}
	days, err := strconv.Atoi(strings.TrimSpace(d.EstimatedDeliveryDays))
	if err != nil {
		return api.ServiceCreate{}, fmt.Errorf("%w: estimated_delivery_days must be a whole number", ErrInvalidDraft)
	}
	return api.ServiceCreate{
		Name:                  d.Name,
		Type:                  api.ServiceType(d.Type),
		Description:           optional(d.Description),
		BasePrice:             price,
		EstimatedDeliveryDays: days,
	}, nil
}

// BookingPayload validates the draft, coerces the quantity and builds the create
// request.
func (d BookingDraft) BookingPayload() (api.BookingCreate, error) {
	if err := checkDraft(d); err != nil {
		return api.BookingCreate{}, err
	}
	qty, err := strconv.Atoi(strings.TrimSpace(d.Quantity))
	if err != nil || qty < 1 {
		return api.BookingCreate{}, fmt.Errorf("%w: quantity must be a whole number of at least 1", ErrInvalidDraft)
	}
	return api.BookingCreate{
		CustomerID: d.CustomerID,
		ServiceID:  d.ServiceID,
		Quantity:   qty,
		Notes:      optional(d.Notes),
	}, nil
}

func checkDraft(draft any) error {
	err := validate.Struct(draft)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		switch fieldErr.Tag() {
		case "required":
			msgs = append(msgs, fieldErr.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", fieldErr.Field(), fieldErr.Param()))
		default:
			msgs = append(msgs, fieldErr.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidDraft, strings.Join(msgs, ", "))
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
