package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

// bind decodes the request into req and validates it. Both failures come
// back as request errors.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid body")
	}
	if err := c.Validate(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return badRequest(fmt.Sprintf("invalid '%s' with value '%v'", ve[0].Field(), ve[0].Value()))
		}
		return badRequest(err.Error())
	}
	return nil
}

func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil && n >= 0 {
		return n
	}
	return def
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid '%s' with value '%s'", field, s))
	}
	return &t, nil
}
