// ABOUTME: Tests for form validation and error rendering
// ABOUTME: Checks json field naming, custom tags and translations

package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Phone    string   `json:"phone" validate:"phone"`
	Name     string   `json:"name" validate:"notblank,min=2,max=20"`
	Password string   `json:"password" validate:"required,min=6,max=20"`
	Confirm  string   `json:"confirm_password" validate:"eqfield=Password"`
	Tags     []string `json:"tags" validate:"min=1,dive,colour"`
}

func init() {
	RegisterValues("colour", []string{"红", "绿"})
}

func valid() sample {
	return sample{
		Phone:    "13812345678",
		Name:     "小明",
		Password: "secret1",
		Confirm:  "secret1",
		Tags:     []string{"红"},
	}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(valid()))
}

func TestStruct_FieldErrors(t *testing.T) {
	s := valid()
	s.Phone = "12812345678"
	s.Name = "   "
	s.Confirm = "other"
	s.Tags = []string{"红", "蓝"}

	err := Struct(s)
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "phone")
	assert.Contains(t, verrs, "name")
	assert.Contains(t, verrs, "confirm_password")
	assert.Contains(t, verrs, "tags[1]")
	assert.NotContains(t, verrs, "password")

	assert.Equal(t, "phone must be a valid mainland mobile number", verrs["phone"])
	assert.Equal(t, "tags[1] is not a recognised value", verrs["tags[1]"])
}

func TestStruct_LengthCountsRunes(t *testing.T) {
	s := valid()
	s.Name = "明"
	err := Struct(s)
	require.Error(t, err)
	assert.Contains(t, err.(Errors), "name")

	s.Name = "小明同学"
	assert.NoError(t, Struct(s))
}

func TestStruct_EmptySliceRejected(t *testing.T) {
	s := valid()
	s.Tags = nil
	err := Struct(s)
	require.Error(t, err)
	assert.Contains(t, err.(Errors), "tags")
}

func TestErrors_ErrorIsSorted(t *testing.T) {
	e := Errors{"b": "two", "a": "one"}
	assert.Equal(t, "validation failed: a: one; b: two", e.Error())
}
