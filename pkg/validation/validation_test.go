package validation

import (
	"errors"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"omitempty,len=10,numeric"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := Struct(signupForm{Email: "nope", Phone: "12ab"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	fields := FieldErrors(err)
	assert.Equal(t, "must be a valid email", fields["email"])
	assert.Equal(t, "is required", fields["password"])
	assert.Equal(t, "must be exactly 10 characters", fields["phone"])
}

func TestStructAcceptsValidInput(t *testing.T) {
	assert.NoError(t, Struct(signupForm{Email: "a@example.com", Password: "longenough", Phone: "9876543210"}))
}

func TestFieldErrorsWithoutDetails(t *testing.T) {
	assert.Nil(t, FieldErrors(errors.New("plain")))
	assert.Nil(t, FieldErrors(pkgerrors.New(pkgerrors.CodeValidation, "bad")))
}
