package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tharunsai190/classy-commerce-storefront/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return domain.PaymentMethod(fl.Field().String()).Valid()
	})
	return v
}

// normalize trims the free-text fields so that whitespace-only values count
// as missing.
func normalize(req domain.PlaceOrderRequest) domain.PlaceOrderRequest {
	req.UserID = strings.TrimSpace(req.UserID)
	lines := make([]domain.CartLine, len(req.Lines))
	for i, l := range req.Lines {
		l.ProductID = strings.TrimSpace(l.ProductID)
		lines[i] = l
	}
	if req.Lines != nil {
		req.Lines = lines
	}
	a := &req.ShippingAddress
	a.Name = strings.TrimSpace(a.Name)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Phone = strings.TrimSpace(a.Phone)
	return req
}

// validateRequest reports the first structural problem as a ValidationError.
func (s *orderService) validateRequest(req domain.PlaceOrderRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &domain.ValidationError{Field: "request", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &domain.ValidationError{Field: fieldPath(fe), Reason: reason(fe)}
}

// quantitiesByProduct sums the lines per product. Lines are already bounded
// by MaxQuantity, so the running sum cannot overflow before the check.
func quantitiesByProduct(lines []domain.CartLine) (map[string]int, error) {
	quantities := make(map[string]int, len(lines))
	for _, l := range lines {
		quantities[l.ProductID] += l.Quantity
		if quantities[l.ProductID] > domain.MaxQuantity {
			return nil, &domain.ValidationError{
				Field:  "lines",
				Reason: fmt.Sprintf("quantity of product %s must be at most %d", l.ProductID, domain.MaxQuantity),
			}
		}
	}
	return quantities, nil
}

// fieldPath drops the root struct name: "PlaceOrderRequest.lines[1].quantity"
// becomes "lines[1].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "payment_method":
		return fmt.Sprintf("%q is not a recognized payment method", fe.Value())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
