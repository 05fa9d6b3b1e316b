package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIP(t *testing.T) {
	tests := map[string]string{
		"":                      "",
		"10.0.0.1":              "10.0.0.1",
		"10.0.0.1:8080":         "10.0.0.1",
		"203.0.113.5, 10.0.0.1": "203.0.113.5",
		"::ffff:192.0.2.1":      "192.0.2.1",
		"[2001:db8::1]:443":     "2001:db8::1",
		"not-an-ip":             "not-an-ip",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIP(in), "NormalizeIP(%q)", in)
	}
}

func TestGetClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", GetClientIP(c))

	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("X-Real-IP", "198.51.100.8")
	assert.Equal(t, "198.51.100.8", GetClientIP(c))

	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", GetClientIP(c))
}

type dueRequest struct {
	ID      int64     `json:"id" binding:"required,gt=0"`
	DueDate time.Time `json:"dueDate" binding:"required,notpast"`
}

func TestNotPastValidator(t *testing.T) {
	require.NoError(t, RegisterValidators())
	t.Cleanup(func() { SetAllowPastDue(false) })

	future := dueRequest{ID: 1, DueDate: time.Now().Add(time.Hour)}
	assert.NoError(t, binding.Validator.ValidateStruct(&future))

	past := dueRequest{ID: 1, DueDate: time.Now().Add(-time.Hour)}
	err := binding.Validator.ValidateStruct(&past)
	require.Error(t, err)
	assert.Equal(t, map[string]string{"dueDate": "cannot be in the past"}, TranslateValidationErrors(err))

	SetAllowPastDue(true)
	assert.NoError(t, binding.Validator.ValidateStruct(&past))

	missing := dueRequest{}
	err = binding.Validator.ValidateStruct(&missing)
	require.Error(t, err)
	msgs := TranslateValidationErrors(err)
	assert.Equal(t, "is required", msgs["id"])
	assert.Equal(t, "is required", msgs["dueDate"])
}
