package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, uuid.Version(7), id.Version())

	r, err := NewRandom()
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(7), r.Version())
}

func TestNewString(t *testing.T) {
	a := NewString()
	b := NewString()
	assert.True(t, IsValid(a))
	assert.NotEqual(t, a, b)
}

func TestParse(t *testing.T) {
	valid := "123e4567-e89b-12d3-a456-426614174000"
	id, err := Parse(valid)
	assert.NoError(t, err)
	assert.Equal(t, valid, id.String())
	assert.True(t, IsValid(valid))

	_, err = Parse("invalid-uuid")
	assert.Error(t, err)
	assert.False(t, IsValid("invalid-uuid"))
}
