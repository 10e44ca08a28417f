package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidUsername checks that a username is plain alphanumeric text of a
// sane length. Usernames come from configuration, so this is a guard against
// typos rather than hostile input.
func IsValidUsername(username string) bool {
	return validate.Var(username, "required,alphanum,min=2,max=64") == nil
}

// IsValidChoiceLetter checks that a submitted answer choice is a single
// letter.
func IsValidChoiceLetter(choice string) bool {
	return validate.Var(choice, "required,len=1,alpha") == nil
}
