package service

import (
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// usernameValid allows letters, digits and underscores; the first rune must
// be a letter.
func usernameValid(fl validator.FieldLevel) bool {
	for i, char := range fl.Field().String() {
		if i == 0 && !unicode.IsLetter(char) {
			return false
		}
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' {
			return false
		}
	}
	return true
}

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("alphanum_underscore", usernameValid)
	})
}
