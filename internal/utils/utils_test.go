package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMobileValidation(t *testing.T) {
	tables := []struct {
		number string
		valid  bool
	}{
		{"9171234567", true},
		{"+639171234567", true},
		{"639171234567", true},
		{" 91712345678 ", true},
		{"8171234567", false},
		{"917123456", false},
		{"917123456789", false},
		{"+63 9171234567", false},
		{"", false},
	}

	for _, table := range tables {
		assert.Equal(t, table.valid, IsValidMobile(table.number), "number %q", table.number)
	}

	assert.Equal(t, "9171234567", NormalizeMobile("+639171234567"))
}

type goalForm struct {
	Phone string  `validate:"required,mobile"`
	Goal  float64 `validate:"required,gt=0,finite"`
}

func TestCustomValidators(t *testing.T) {
	assert.Nil(t, Validate.Struct(goalForm{Phone: "+639171234567", Goal: 1000}))
	assert.NotNil(t, Validate.Struct(goalForm{Phone: "12345", Goal: 1000}))
	assert.NotNil(t, Validate.Struct(goalForm{Phone: "9171234567", Goal: -1}))
	assert.NotNil(t, Validate.Struct(goalForm{Phone: "9171234567", Goal: math.Inf(1)}))
}

func TestMillis(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at, FromMillis(ToMillis(at)))
}
