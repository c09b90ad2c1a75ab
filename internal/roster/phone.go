// Package roster normalizes player contact details before they are stored.
package roster

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers entered without a country code.
const DefaultRegion = "US"

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns raw in E.164 form, reading national numbers as
// DefaultRegion numbers.
func NormalizePhone(raw string) (string, error) {
	return NormalizePhoneIn(raw, DefaultRegion)
}

func NormalizePhoneIn(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "@") {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// GuardianPhone converts optional form input into a nullable column value.
// Blank input clears the phone.
func GuardianPhone(raw *string) (sql.NullString, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return sql.NullString{}, nil
	}
	normalized, err := NormalizePhone(*raw)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: normalized, Valid: true}, nil
}
