package model

import (
	"strings"

	"github.com/google/uuid"
)

const codeLength = 10

// NewCode returns a short opaque identifier for a new entity.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}
