package handler

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jhgaldino/socialsynchub/internal/model"
)

const (
	minNameLength     = 2
	maxNameLength     = 100
	minPasswordLength = 6
	maxPasswordLength = 100
)

// validateEmail はメールアドレスの形式を検証する。表示名付きの形式は受け付けない。
func validateEmail(email string) *model.APIError {
	if email == "" {
		return model.NewInvalidInputError("メールアドレスは必須です")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewInvalidInputError("メールアドレスの形式が正しくありません")
	}
	return nil
}

// validatePassword はパスワードの長さと文字種を検証する。
// 大文字、小文字、数字、記号をそれぞれ1文字以上含むこと。
func validatePassword(password string) *model.APIError {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength || n > maxPasswordLength {
		return model.NewInvalidInputError("パスワードは6文字以上100文字以下で入力してください")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return model.NewInvalidInputError("パスワードには大文字、小文字、数字、記号をそれぞれ1文字以上含めてください")
	}
	return nil
}

// validateRegistration はユーザー登録リクエストを検証する。
func validateRegistration(req registerRequest) *model.APIError {
	name := strings.TrimSpace(req.Name)
	if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
		return model.NewInvalidInputError("名前は2文字以上100文字以下で入力してください")
	}
	if apiErr := validateEmail(strings.TrimSpace(req.Email)); apiErr != nil {
		return apiErr
	}
	if apiErr := validatePassword(req.Password); apiErr != nil {
		return apiErr
	}
	if req.Password != req.ConfirmPassword {
		return model.NewInvalidInputError("確認用パスワードが一致しません")
	}
	return nil
}

// validateLogin はログインリクエストを検証する。パスワードの強度は検証しない。
func validateLogin(req loginRequest) *model.APIError {
	if apiErr := validateEmail(strings.TrimSpace(req.Email)); apiErr != nil {
		return apiErr
	}
	if req.Password == "" {
		return model.NewInvalidInputError("パスワードは必須です")
	}
	return nil
}
