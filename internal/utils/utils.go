package utils

import (
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"
)

//Validate -_-
var Validate *validator.Validate

var mobilePattern = regexp.MustCompile(`^9\d{9,10}$`)
var mobileCountryCode = regexp.MustCompile(`^\+?63`)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return IsValidMobile(fl.Field().String())
	}); err != nil {
		panic(err)
	}

	if err := Validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		default:
			return true
		}
	}); err != nil {
		panic(err)
	}
}

//NormalizeMobile Trims the number and strips leading country code (+63 or 63).
func NormalizeMobile(number string) string {
	return mobileCountryCode.ReplaceAllString(strings.TrimSpace(number), "")
}

//IsValidMobile Local mobile number starts with 9 and has 10 or 11 digits once the country code is stripped.
func IsValidMobile(number string) bool {
	return mobilePattern.MatchString(NormalizeMobile(number))
}

//Clock Source of current time, replaceable in tests.
type Clock func() time.Time

//Now Real clock.
func Now() time.Time {
	return time.Now()
}

//ToMillis Converts time to epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

//FromMillis Converts epoch milliseconds to UTC time.
func FromMillis(ms int64) time.Time {
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}
