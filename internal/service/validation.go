package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

var (
	minAmount = decimal.RequireFromString("0.01")
	// payments.amount is DECIMAL(10,2)
	maxAmount = decimal.RequireFromString("99999999.99")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateCreateRequest(req models.CreatePaymentRequest) error {
	fields := make(map[string]string)

	switch {
	case req.Amount == nil:
		fields["amount"] = "The amount field is required."
	case req.Amount.LessThan(minAmount):
		fields["amount"] = "The amount must be at least 0.01."
	case req.Amount.GreaterThan(maxAmount):
		fields["amount"] = "The amount may not be greater than 99999999.99."
	case !req.Amount.Equal(req.Amount.Round(2)):
		fields["amount"] = "The amount may not have more than 2 decimal places."
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			name := fieldName(fe)
			if _, seen := fields[name]; !seen {
				fields[name] = fieldMessage(name, fe)
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// fieldName drops the root struct from the namespace: "items[0].name" rather than "CreatePaymentRequest.items[0].name".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid. Allowed: %s.", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s may not be greater than %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", name, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", name, fe.Param())
	}
	return fmt.Sprintf("The %s is invalid.", name)
}
