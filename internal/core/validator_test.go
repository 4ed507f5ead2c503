package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aigrowth/internal/types"
)

type testBuyer struct {
	Email string `json:"email" validate:"omitempty,email"`
}

type testOrder struct {
	Customer     testBuyer `json:"customer"`
	Installments int       `json:"installments" validate:"omitempty,min=1,max=12"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := NewValidator(testLogger())
	assert.NoError(t, v.ValidateStruct(&testOrder{Customer: testBuyer{Email: "a@b.com"}, Installments: 12}))
	assert.NoError(t, v.ValidateStruct(testOrder{}), "optional fields may be empty")
}

func TestValidateStruct_InvalidEmail(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(&testOrder{Customer: testBuyer{Email: "not-an-email"}})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidEmail, appErr.Code)
	assert.Equal(t, "email", appErr.Details["customer.email"])
}

func TestValidateStruct_InstallmentsOutOfRange(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(testOrder{Installments: 13})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPayload, appErr.Code)
	assert.Equal(t, "max", appErr.Details["installments"])
	assert.Equal(t, 400, appErr.HTTPStatus())
}

type testLead struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidateStruct_MissingRequiredField(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(&testLead{})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
	assert.Equal(t, "required", appErr.Details["name"])
}

func TestValidateStruct_InvalidEmailWinsOverMissingField(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct(&testLead{Email: "nope"})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidEmail))
}

func TestValidateStruct_NotAStruct(t *testing.T) {
	v := NewValidator(testLogger())
	err := v.ValidateStruct("nope")
	assert.True(t, types.HasCode(err, types.ErrCodeInternalUnexpected))
}
