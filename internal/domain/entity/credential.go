package entity

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// CredentialKey 凭证在配置存储中的键
	CredentialKey = "fal_api_key"
	// MinCredentialLength 凭证最小字符数
	MinCredentialLength = 10
)

var (
	ErrCredentialEmpty      = errors.New("credential is empty")
	ErrCredentialWhitespace = errors.New("credential has leading or trailing whitespace")
	ErrCredentialTooShort   = errors.New("credential is too short")
)

// ValidateCredential 校验凭证格式
func ValidateCredential(credential string) error {
	if strings.TrimSpace(credential) == "" {
		return ErrCredentialEmpty
	}
	if strings.TrimSpace(credential) != credential {
		return ErrCredentialWhitespace
	}
	if utf8.RuneCountInString(credential) < MinCredentialLength {
		return ErrCredentialTooShort
	}
	return nil
}
