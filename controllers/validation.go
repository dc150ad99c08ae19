package controllers

import (
	"HealthConnect/models"
	"HealthConnect/role"
	"HealthConnect/util"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the role and weekday tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			_, ok := role.Parse(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			return models.ValidWeekday(fl.Field().String())
		})
	})
}

var tagMessages = map[string]string{
	"required": util.ALL_FIELDS_REQUIRED,
	"email":    util.INVALID_EMAIL,
	"role":     util.INVALID_ROLE,
	"weekday":  util.INVALID_WEEKDAY,
}

/*
* Validator failures name the first offending field
* Malformed JSON is a plain validation error
 */
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "invalid " + fe.Field()
		}
		return util.ValidationError(msg).WithDetail("field", fe.Field()).WithDetail("rule", fe.Tag())
	}
	if errors.Is(err, io.EOF) {
		return util.ValidationError(util.ALL_FIELDS_REQUIRED)
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return util.ValidationError("malformed request body")
	}
	return util.WrapError(util.KindValidation, "malformed request body", err)
}
