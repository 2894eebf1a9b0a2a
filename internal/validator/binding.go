package validator

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
)

// RegisterTags 在 gin 的校验引擎上注册自定义标签:
// domain_name, tld_extension, dns_type, iso_currency
func RegisterTags() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("gin 校验引擎不是 go-playground/validator")
	}
	return Register(v)
}

// Register 将自定义标签注册到给定的校验器上
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"domain_name": func(fl validator.FieldLevel) bool {
			return ValidateDomainName(fl.Field().String()) == nil
		},
		"tld_extension": func(fl validator.FieldLevel) bool {
			return ValidateTldExtension(fl.Field().String()) == nil
		},
		"dns_type": func(fl validator.FieldLevel) bool {
			return IsRecordType(strings.ToUpper(fl.Field().String()))
		},
		"iso_currency": func(fl validator.FieldLevel) bool {
			_, err := currency.ParseISO(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("注册校验标签 %s 失败: %w", tag, err)
		}
	}
	return nil
}
