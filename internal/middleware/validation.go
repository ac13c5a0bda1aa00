package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// ValidateMessageContent validates customer message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateCustomerID validates a stable customer identity.
func ValidateCustomerID(id string) error {
	if len(id) == 0 {
		return errors.New("customer ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("customer ID exceeds maximum length")
	}
	return nil
}

// ValidateDepartment validates a department value; empty is allowed where a
// department is optional.
func ValidateDepartment(d model.Department) error {
	if d == "" {
		return nil
	}
	if !d.Valid() {
		return errors.New("unknown department")
	}
	return nil
}

// ValidateCustomerName validates a display name.
func ValidateCustomerName(name string) error {
	if len(name) > 256 {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}
