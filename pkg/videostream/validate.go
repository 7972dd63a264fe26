package videostream

import (
	"encoding/hex"
)

// ObjectIDLength is the length of a hex-encoded 12 byte ObjectID.
const ObjectIDLength = 24

// ObjectIDValidator accepts 24 character hexadecimal identifiers.
type ObjectIDValidator struct{}

// NewObjectIDValidator creates a validator for ObjectID identifiers
func NewObjectIDValidator() Validator {
	return ObjectIDValidator{}
}

func (ObjectIDValidator) Validate(raw string) (ResourceID, error) {
	if raw == "" {
		return "", ErrMissingID
	}
	if len(raw) != ObjectIDLength {
		return "", ErrInvalidID
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", ErrInvalidID
	}
	return ResourceID(raw), nil
}

// AllowListValidator accepts only identifiers from a closed set.
type AllowListValidator struct {
	allowed map[string]struct{}
}

// NewAllowListValidator creates a validator accepting exactly the given ids.
// Empty entries are ignored.
func NewAllowListValidator(ids ...string) *AllowListValidator {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		allowed[id] = struct{}{}
	}
	return &AllowListValidator{allowed: allowed}
}

func (v *AllowListValidator) Validate(raw string) (ResourceID, error) {
	if raw == "" {
		return "", ErrMissingID
	}
	if _, ok := v.allowed[raw]; !ok {
		return "", ErrInvalidID
	}
	return ResourceID(raw), nil
}
