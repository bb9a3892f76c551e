package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/adiselav/CabanApp/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// phonePattern accepts Romanian mobile numbers with optional +4 and leading 0.
var phonePattern = regexp.MustCompile(`^(\+4)?0?7[0-9]{8}$`)

// NewValidator returns a validator with the domain tags ro_phone and money registered.
// Field names in errors follow the json tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ro_phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := ParseMoney(fl.Field().String())
		return err == nil
	})
	return v
}

// ParseMoney parses a positive amount with at most two decimals.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, domain.Invalid("invalid amount %q", s)
	}
	if !d.IsPositive() || d.Exponent() < -2 {
		return decimal.Decimal{}, domain.Invalid("amount %q must be positive with at most two decimals", s)
	}
	return d, nil
}

func validateInput(v *validator.Validate, in interface{}) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return domain.Invalid("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return domain.Invalid("%s failed %s", fe.Field(), fe.Tag())
	}
	return domain.Invalid("%v", err)
}
