package user

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/nyxmentor/portal/core"
)

type secretPolicy struct {
	field  string
	label  string
	minLen int
	maxLen int
}

var (
	passwordPolicy     = secretPolicy{label: "password", minLen: 8, maxLen: 20}
	securityCodePolicy = secretPolicy{label: "security code", minLen: 6, maxLen: 20}

	pwdMinLenTag  = "pwdminlen"
	pwdMaxLenTag  = "pwdmaxlen"
	codeMinLenTag = "codeminlen"
	codeMaxLenTag = "codemaxlen"

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateProfile{}, ResetUserPassword{})

	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, fmt.Sprintf("password must contain at least %d characters", passwordPolicy.minLen))
	core.RegisterCustomTranslation(validate, translator, pwdMaxLenTag, fmt.Sprintf("password must contain at most %d characters", passwordPolicy.maxLen))
	core.RegisterCustomTranslation(validate, translator, codeMinLenTag, fmt.Sprintf("security code must contain at least %d characters", securityCodePolicy.minLen))
	core.RegisterCustomTranslation(validate, translator, codeMaxLenTag, fmt.Sprintf("security code must contain at most %d characters", securityCodePolicy.maxLen))
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, "{0} "+pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, "{0} "+pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, "{0} "+pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// userStructValidation applies the password and security code policies.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateSecret(usr.Password, "password", passwordPolicy, sl, usr.Name, usr.Email)
		validateSecret(usr.SecurityCode, "securityCode", securityCodePolicy, sl)
	case UpdateProfile:
		if usr.NewPassword != "" {
			validateSecret(usr.NewPassword, "newPassword", passwordPolicy, sl, usr.Name, usr.Email)
		}
		if usr.NewSecurityCode != "" {
			validateSecret(usr.NewSecurityCode, "newSecurityCode", securityCodePolicy, sl)
		}
	case ResetUserPassword:
		validateSecret(usr.NewPassword, "newPassword", passwordPolicy, sl)
	}
}

// validateSecret applies a secret policy:
// - length within [minLen, maxLen]
// - no whitespace
// - not all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no similarity with the given user attributes
func validateSecret(secret, field string, policy secretPolicy, sl validator.StructLevel, attrs ...string) {
	if secret == "" { // reported by `required`
		return
	}
	reportErr := func(tag string) {
		sl.ReportError(secret, field, field, tag, "")
	}

	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	runes := []rune(secret)
	if len(runes) < policy.minLen {
		if policy == passwordPolicy {
			reportErr(pwdMinLenTag)
		} else {
			reportErr(codeMinLenTag)
		}
		return
	}
	if len(runes) > policy.maxLen {
		if policy == passwordPolicy {
			reportErr(pwdMaxLenTag)
		} else {
			reportErr(codeMaxLenTag)
		}
		return
	}

	for _, char := range runes {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(runes) {
		reportErr(pwdNotAllNumTag)
		return
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(secret)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		reportErr(pwdComplexityTag)
		return
	}

	getRatio := func(s, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(s), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	for _, attr := range attrs {
		if getRatio(secret, attr) >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}
