package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/phone"
)

// Offline providers backed by the libphonenumber metadata tables. They never
// touch the network and return immediately.

// BasicInfo reports validity and formatting of the number.
func BasicInfo() Provider {
	return Func(func(_ context.Context, n phone.Number) domain.LookupResult {
		if !n.Valid() {
			return domain.NotFound("")
		}
		details := map[string]string{
			"valid":         "true",
			"e164":          n.E164(),
			"international": n.International(),
			"region_code":   n.RegionCode(),
			"country_code":  strconv.Itoa(n.CountryCode()),
			"number_type":   n.Type(),
		}
		putNonEmpty(details, "carrier", n.Carrier())
		putNonEmpty(details, "region", n.Region())
		putNonEmpty(details, "timezones", strings.Join(n.Timezones(), ", "))
		return domain.Found("", details)
	})
}

// Carrier reports the original network operator.
func Carrier() Provider {
	return Func(func(_ context.Context, n phone.Number) domain.LookupResult {
		name := n.Carrier()
		if name == "" {
			return domain.NotFound("")
		}
		return domain.Found("", map[string]string{
			"carrier":     name,
			"number_type": n.Type(),
		})
	})
}

// Geocoder reports the geographic area the number was allocated to.
func Geocoder() Provider {
	return Func(func(_ context.Context, n phone.Number) domain.LookupResult {
		region := n.Region()
		if region == "" {
			return domain.NotFound("")
		}
		return domain.Found("", map[string]string{
			"region":      region,
			"region_code": n.RegionCode(),
		})
	})
}

// Timezone reports the IANA zones the number may be in.
func Timezone() Provider {
	return Func(func(_ context.Context, n phone.Number) domain.LookupResult {
		zones := n.Timezones()
		if len(zones) == 0 {
			return domain.NotFound("")
		}
		return domain.Found("", map[string]string{
			"timezones": strings.Join(zones, ", "),
		})
	})
}

func putNonEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
