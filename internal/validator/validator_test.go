package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string  `json:"name" validate:"required,max=5"`
	Position float64 `json:"position" validate:"gte=0"`
}

func TestValidate(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(sample{Name: "ok"}))

	err := v.Validate(sample{Name: "", Position: -1})
	var errs Errors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 2)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[0].Code)
	assert.Equal(t, "name is required", errs[0].Message)
	assert.Equal(t, "position", errs[1].Field)
	assert.Equal(t, "GTE", errs[1].Code)
}
