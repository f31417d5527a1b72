package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixPreset = "pre_"
	PrefixUser   = "usr_"
)

// NewPreset generates a new preset ID with pre_ prefix
func NewPreset() string {
	return PrefixPreset + uuid.New().String()
}

// NewUser generates a new user ID with usr_ prefix
func NewUser() string {
	return PrefixUser + uuid.New().String()
}

// New generates a generic UUID without prefix (for internal use only)
func New() string {
	return uuid.New().String()
}
