package phone

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultLanguage is used for carrier and geocoding descriptions.
const DefaultLanguage = "en"

// unknownTimezone is what the timezone map returns for numbers it cannot place.
const unknownTimezone = "Etc/Unknown"

// Number is a normalized phone number together with its parsed libphonenumber
// representation. The zero value is not usable; build one with Parse.
type Number struct {
	digits string
	parsed *phonenumbers.PhoneNumber
}

// Parse interprets normalized digits (country code first, as produced by
// Normalize) as an international number.
func Parse(digits string) (Number, error) {
	if digits == "" {
		return Number{}, fmt.Errorf("parse number: empty input")
	}
	parsed, err := phonenumbers.Parse("+"+digits, "")
	if err != nil {
		return Number{}, fmt.Errorf("parse number %s: %w", digits, err)
	}
	return Number{digits: digits, parsed: parsed}, nil
}

// MustParse normalizes and parses raw, panicking on failure. Intended for tests
// and static fixtures.
func MustParse(raw string) Number {
	n, err := Parse(MustNormalize(raw))
	if err != nil {
		panic(err)
	}
	return n
}

// Digits returns the canonical digits-only form.
func (n Number) Digits() string { return n.digits }

// E164 returns the number in +<country><national> form.
func (n Number) E164() string { return "+" + n.digits }

// String implements fmt.Stringer.
func (n Number) String() string { return n.E164() }

// CountryCode returns the numeric calling code.
func (n Number) CountryCode() int {
	if n.parsed == nil {
		return 0
	}
	return int(n.parsed.GetCountryCode())
}

// NationalNumber returns the national significant number.
func (n Number) NationalNumber() string {
	if n.parsed == nil {
		return ""
	}
	return strconv.FormatUint(n.parsed.GetNationalNumber(), 10)
}

// RegionCode returns the ISO 3166-1 region the number belongs to, or "ZZ".
func (n Number) RegionCode() string {
	if n.parsed == nil {
		return "ZZ"
	}
	region := phonenumbers.GetRegionCodeForNumber(n.parsed)
	if region == "" {
		return "ZZ"
	}
	return region
}

// Valid reports whether the number matches a known numbering plan.
func (n Number) Valid() bool {
	return n.parsed != nil && phonenumbers.IsValidNumber(n.parsed)
}

// International formats the number for display, e.g. "+39 340 123 4567".
func (n Number) International() string {
	if n.parsed == nil {
		return n.E164()
	}
	return phonenumbers.Format(n.parsed, phonenumbers.INTERNATIONAL)
}

// Type returns the line type as a lower-case label such as "mobile".
func (n Number) Type() string {
	if n.parsed == nil {
		return "unknown"
	}
	return typeLabel(phonenumbers.GetNumberType(n.parsed))
}

// Carrier returns the original carrier name or "" when unknown.
func (n Number) Carrier() string {
	if n.parsed == nil {
		return ""
	}
	name, err := phonenumbers.GetCarrierForNumber(n.parsed, DefaultLanguage)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}

// Region returns a geographic description such as "Italy" or "Mountain View, CA".
func (n Number) Region() string {
	if n.parsed == nil {
		return ""
	}
	desc, err := phonenumbers.GetGeocodingForNumber(n.parsed, DefaultLanguage)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(desc)
}

// Timezones returns the IANA zones the number may be in. Unknown zones are dropped.
func (n Number) Timezones() []string {
	if n.parsed == nil {
		return nil
	}
	zones, err := phonenumbers.GetTimezonesForNumber(n.parsed)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		if z == "" || z == unknownTimezone {
			continue
		}
		out = append(out, z)
	}
	return out
}

func typeLabel(t phonenumbers.PhoneNumberType) string {
	switch t {
	case phonenumbers.FIXED_LINE:
		return "fixed_line"
	case phonenumbers.MOBILE:
		return "mobile"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "fixed_line_or_mobile"
	case phonenumbers.TOLL_FREE:
		return "toll_free"
	case phonenumbers.PREMIUM_RATE:
		return "premium_rate"
	case phonenumbers.SHARED_COST:
		return "shared_cost"
	case phonenumbers.VOIP:
		return "voip"
	case phonenumbers.PERSONAL_NUMBER:
		return "personal_number"
	case phonenumbers.PAGER:
		return "pager"
	case phonenumbers.UAN:
		return "uan"
	case phonenumbers.VOICEMAIL:
		return "voicemail"
	default:
		return "unknown"
	}
}
