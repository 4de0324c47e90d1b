package models

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Storage Keys
//
// Every field the planner persists lives under a flat string key:
//
//	planner:<user>:<section>.<field>
//
// The namespace prefix keeps planner data from colliding with anything else
// sharing the store. The user token partitions the keyspace per identity;
// anonymous visitors all share the "anon" token. Section and field are
// joined with a dot, and the field part may itself contain dots — the
// section is everything before the first one.
// ============================================================================

const (
	// KeyNamespace prefixes every key this module owns.
	KeyNamespace = "planner"

	// AnonymousUser is the shared identity token for signed-out usage.
	AnonymousUser = "anon"

	keySeparator = ":"
)

var (
	// ErrInvalidIdentifier flags a user, section, or field that cannot be
	// embedded in a key.
	ErrInvalidIdentifier = errors.New("invalid key identifier")

	// ErrMalformedKey flags a stored key that does not match the
	// namespace:user:section.field shape.
	ErrMalformedKey = errors.New("malformed storage key")
)

// BuildKey assembles the storage key for one field of one user's plan.
// Identifiers must be non-empty and free of the separator; the section
// additionally must not contain a dot, or the key could not be parsed back.
func BuildKey(userID, section, field string) (string, error) {
	if err := checkIdentifier("user", userID); err != nil {
		return "", err
	}
	if err := checkIdentifier("section", section); err != nil {
		return "", err
	}
	if strings.Contains(section, ".") {
		return "", fmt.Errorf("%w: section %q must not contain '.'", ErrInvalidIdentifier, section)
	}
	if err := checkIdentifier("field", field); err != nil {
		return "", err
	}
	return KeyNamespace + keySeparator + userID + keySeparator + section + "." + field, nil
}

// ParseKey splits a storage key back into its section and field. Use
// KeyUser for the identity part.
func ParseKey(key string) (section, field string, err error) {
	parts := strings.SplitN(key, keySeparator, 3)
	if len(parts) != 3 || parts[0] != KeyNamespace || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	dot := strings.Index(parts[2], ".")
	if dot <= 0 || dot == len(parts[2])-1 {
		return "", "", fmt.Errorf("%w: %q has no section.field part", ErrMalformedKey, key)
	}
	return parts[2][:dot], parts[2][dot+1:], nil
}

// KeyUser extracts the user token from a storage key.
func KeyUser(key string) (string, error) {
	parts := strings.SplitN(key, keySeparator, 3)
	if len(parts) != 3 || parts[0] != KeyNamespace || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return parts[1], nil
}

// UserPrefix returns the scan prefix covering every key a user owns.
func UserPrefix(userID string) string {
	return KeyNamespace + keySeparator + userID + keySeparator
}

// SectionPrefix returns the scan prefix covering one section of a user's
// keyspace.
func SectionPrefix(userID, section string) string {
	return UserPrefix(userID) + section + "."
}

func checkIdentifier(kind, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidIdentifier, kind)
	}
	if strings.Contains(v, keySeparator) {
		return fmt.Errorf("%w: %s %q must not contain %q", ErrInvalidIdentifier, kind, v, keySeparator)
	}
	return nil
}
