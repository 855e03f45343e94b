package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClient("")
	require.Error(t, err)
}

func TestNewClient_ExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	c, err := NewClient("sk-test")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestError_IsProvider(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &Error{Op: "chat completion", Err: cause})

	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, cause)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "chat completion", pe.Op)
	assert.Equal(t, "chat completion: boom", pe.Error())
}

func TestToFloat32(t *testing.T) {
	got := toFloat32([]float64{0.5, -1.25, 0})
	assert.Equal(t, []float32{0.5, -1.25, 0}, got)
}
