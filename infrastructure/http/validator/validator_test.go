package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co"}`))
		var p payload
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &p))
		assert.Equal(t, "a@b.co", p.Email)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var p payload
		require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &p))
		assert.Empty(t, p.Email)
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":`))
		var p payload
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &p), ErrInvalidBody)
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		r := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var p payload
		assert.ErrorIs(t, DecodeJSON(httptest.NewRecorder(), r, &p), ErrInvalidBody)
	})
}

func TestValidateJWT(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"aaa.bbb.ccc", true},
		{"aaa.bbb.", true},
		{"", false},
		{"aaa.bbb", false},
		{".bbb.ccc", false},
		{"a.b.c.d", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateJWT(tt.token), tt.token)
	}
}

func TestValidateRequired(t *testing.T) {
	assert.True(t, ValidateRequired("x"))
	assert.False(t, ValidateRequired("   "))
}
