package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusRequest struct {
	Status string `json:"status" validate:"required,color"`
	Reason string `json:"reason,omitempty" validate:"max=10"`
	Email  string `json:"email" validate:"required,email"`
}

func TestValidator_StringRuleAndStructuredErrors(t *testing.T) {
	v := New()
	require.NoError(t, v.RegisterStringRule("color", func(s string) bool {
		return s == "red" || s == "green"
	}))

	ok := statusRequest{Status: "red", Reason: "short", Email: "ops@example.com"}
	assert.Nil(t, v.ValidateStructured(&ok))

	bad := statusRequest{Status: "blue", Reason: "far too long a reason", Email: "nope"}
	errs := v.ValidateStructured(&bad)
	assert.Equal(t, "failed validation on 'color'", errs["status"])
	assert.Equal(t, "Must be at most 10 characters", errs["reason"])
	assert.Equal(t, "Invalid email address", errs["email"])
}

func TestValidator_NotBlank(t *testing.T) {
	type req struct {
		Note string `json:"note" validate:"not_blank"`
	}
	v := New()

	errs := v.ValidateStructured(&req{Note: "   "})
	assert.Equal(t, "Must not be blank", errs["note"])
	assert.Nil(t, v.ValidateStructured(&req{Note: "ok"}))
}
