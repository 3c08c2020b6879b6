package validation

import (
	"fmt"
	"regexp"
	"unicode"
)

// ResourcePattern определяет допустимый формат имени ресурса
// Строчные латинские буквы, цифры, нижнее подчеркивание; начинается с буквы
// Длина: 1-64 символа
var ResourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

const (
	// MaxResourceLen максимальная длина имени ресурса
	MaxResourceLen = 64
	// MaxEntityIDLen максимальная длина идентификатора записи
	MaxEntityIDLen = 128
)

// ValidateResource проверяет, что имя ресурса соответствует требованиям
func ValidateResource(resource string) error {
	if resource == "" {
		return fmt.Errorf("resource cannot be empty")
	}

	if len(resource) > MaxResourceLen {
		return fmt.Errorf("resource must not exceed %d characters", MaxResourceLen)
	}

	if !ResourcePattern.MatchString(resource) {
		return fmt.Errorf("resource can only contain lowercase letters (a-z), numbers (0-9), and underscores (_), starting with a letter")
	}

	return nil
}

// ValidateEntityID проверяет идентификатор записи
// Непустой, не длиннее MaxEntityIDLen, без управляющих символов и пробелов
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id cannot be empty")
	}

	if len(id) > MaxEntityIDLen {
		return fmt.Errorf("entity id must not exceed %d characters", MaxEntityIDLen)
	}

	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("entity id must not contain control characters or spaces")
		}
	}

	return nil
}
