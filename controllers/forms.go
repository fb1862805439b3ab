package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type registerForm struct {
	Username        string `form:"username" binding:"required,min=2,max=20"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	// Remember is a checkbox; any non-empty value means checked.
	Remember string `form:"remember"`
	Next     string `form:"next"`
}

type accountForm struct {
	Username string `form:"username" binding:"required,min=2,max=20"`
	Email    string `form:"email" binding:"required,email"`
}

type postForm struct {
	Title   string `form:"title" binding:"required,max=100"`
	Content string `form:"content" binding:"required"`
}

type resetRequestForm struct {
	Email string `form:"email" binding:"required,email"`
}

type resetPasswordForm struct {
	Password        string `form:"password" binding:"required"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

var registerTagNames sync.Once

// RegisterFormValidation makes validator report fields by their form name.
func RegisterFormValidation() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// bindForm binds a urlencoded or multipart form into dst. Validation problems come back
// as field messages; any other error is returned as is.
func bindForm(ctx *gin.Context, dst interface{}) (map[string]string, error) {
	err := ctx.ShouldBindWith(dst, binding.Form)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = validationMessage(fe)
		}
	}
	return fields, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "min":
		return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "eqfield":
		return "Field must be equal to password."
	default:
		return "Invalid value."
	}
}
