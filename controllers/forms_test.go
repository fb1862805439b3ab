package controllers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeNext(t *testing.T) {
	cases := map[string]bool{
		"":                     false,
		"/account":             true,
		"/post/3?page=2":       true,
		"//evil.example":       false,
		"/\\evil.example":      false,
		"https://evil.example": false,
		"account":              false,
	}
	for next, want := range cases {
		assert.Equal(t, want, safeNext(next), "next=%q", next)
	}
}

func TestBindFormReportsFieldsByFormName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterFormValidation()

	form := url.Values{
		"username":         {"a"},
		"email":            {"nope"},
		"password":         {"one"},
		"confirm_password": {"two"},
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = req

	var dst registerForm
	fields, err := bindForm(ctx, &dst)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"username":         "Field must be at least 2 characters long.",
		"email":            "Invalid email address.",
		"confirm_password": "Field must be equal to password.",
	}, fields)
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, parsePage(""))
	assert.Equal(t, 1, parsePage("0"))
	assert.Equal(t, 1, parsePage("-3"))
	assert.Equal(t, 1, parsePage("x"))
	assert.Equal(t, 4, parsePage(" 4 "))
}
