package security

import (
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// ValidationResult is the outcome of validating a credential field or form.
// Errors preserves rule order; Valid holds iff Errors is empty.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func resultOf(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// FieldRule checks a single field value and returns an error message when violated.
type FieldRule func(value string) (string, bool)

const passwordSpecialSet = "@$!%*?&"

// ValidateEmail checks that the address has a local part, one @, and a dotted
// domain without whitespace.
func ValidateEmail(email string) ValidationResult {
	var errs []string

	if email == "" {
		errs = append(errs, "Email is required")
	} else if !emailShapeValid(email) {
		errs = append(errs, "Please enter a valid email address")
	}

	return resultOf(errs)
}

func emailShapeValid(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	// The dot must separate non-empty domain labels.
	return dot > 0 && dot < len(domain)-1
}

// ValidatePassword accumulates every violated policy rule in fixed order.
// An empty password short-circuits to the single required error.
func ValidatePassword(password string) ValidationResult {
	if password == "" {
		return resultOf([]string{"Password is required"})
	}

	rules := []FieldRule{
		minLengthRule(8, "Password must be at least 8 characters long"),
		containsClassRule(unicode.IsLower, "Password must contain at least one lowercase letter"),
		containsClassRule(unicode.IsUpper, "Password must contain at least one uppercase letter"),
		containsClassRule(unicode.IsDigit, "Password must contain at least one number"),
		containsAnyRule(passwordSpecialSet, "Password must contain at least one special character (@$!%*?&)"),
	}

	var errs []string
	for _, rule := range rules {
		if msg, ok := rule(password); !ok {
			errs = append(errs, msg)
		}
	}

	return resultOf(errs)
}

// ValidateName requires at least 2 characters after trimming, letters and spaces only.
func ValidateName(name string) ValidationResult {
	var errs []string

	switch {
	case name == "":
		errs = append(errs, "Name is required")
	case len([]rune(strings.TrimSpace(name))) < 2:
		errs = append(errs, "Name must be at least 2 characters long")
	case !lettersAndSpacesOnly(name):
		errs = append(errs, "Name can only contain letters and spaces")
	}

	return resultOf(errs)
}

func lettersAndSpacesOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

// ValidateConfirmPassword requires the confirmation to exactly equal the password.
func ValidateConfirmPassword(password, confirm string) ValidationResult {
	var errs []string

	if confirm == "" {
		errs = append(errs, "Please confirm your password")
	} else if password != confirm {
		errs = append(errs, "Passwords do not match")
	}

	return resultOf(errs)
}

// SignUpForm carries the fields of a sign-up submission. Absent fields are
// empty strings.
type SignUpForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
}

// ValidateSignUpForm concatenates email, password, confirm-password and,
// when a name was supplied, name validation errors in that order.
func ValidateSignUpForm(form SignUpForm) ValidationResult {
	var errs []string

	errs = append(errs, ValidateEmail(form.Email).Errors...)
	errs = append(errs, ValidatePassword(form.Password).Errors...)
	errs = append(errs, ValidateConfirmPassword(form.Password, form.ConfirmPassword).Errors...)

	if form.Name != "" {
		errs = append(errs, ValidateName(form.Name).Errors...)
	}

	return resultOf(errs)
}

// SignInForm carries the fields of a sign-in submission.
type SignInForm struct {
	Email    string
	Password string
}

// ValidateSignInForm concatenates email and password validation errors only.
func ValidateSignInForm(form SignInForm) ValidationResult {
	var errs []string

	errs = append(errs, ValidateEmail(form.Email).Errors...)
	errs = append(errs, ValidatePassword(form.Password).Errors...)

	return resultOf(errs)
}

// PasswordStrength grades a password as weak, medium or strong for UI hints.
type PasswordStrength string

const (
	PasswordStrengthWeak   PasswordStrength = "weak"
	PasswordStrengthMedium PasswordStrength = "medium"
	PasswordStrengthStrong PasswordStrength = "strong"
)

// GradePassword scores the password with zxcvbn and maps the score onto the
// three-level strength meter shown next to signup forms.
func GradePassword(password string, userInputs ...string) PasswordStrength {
	if password == "" {
		return PasswordStrengthWeak
	}

	result := zxcvbn.PasswordStrength(password, userInputs)
	switch {
	case result.Score >= 3:
		return PasswordStrengthStrong
	case result.Score == 2:
		return PasswordStrengthMedium
	default:
		return PasswordStrengthWeak
	}
}

// SanitizeInput trims whitespace and strips markup-significant characters
// from user-entered values before validation and submission.
func SanitizeInput(input string) string {
	trimmed := strings.TrimSpace(input)
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, trimmed)
}

// SanitizeEmail applies input sanitization and lowercases the address.
func SanitizeEmail(email string) string {
	return strings.ToLower(SanitizeInput(email))
}

func minLengthRule(min int, message string) FieldRule {
	return func(value string) (string, bool) {
		if len([]rune(value)) < min {
			return message, false
		}
		return "", true
	}
}

func containsClassRule(class func(rune) bool, message string) FieldRule {
	return func(value string) (string, bool) {
		for _, r := range value {
			if class(r) {
				return "", true
			}
		}
		return message, false
	}
}

func containsAnyRule(set, message string) FieldRule {
	return func(value string) (string, bool) {
		if strings.ContainsAny(value, set) {
			return "", true
		}
		return message, false
	}
}
