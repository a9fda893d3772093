package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/phone"
)

// Truecaller endpoints.
const (
	TruecallerSearchEndpoint = "https://search5-noneu.truecaller.com/v2/search"
	TruecallerPublicURL      = "https://www.truecaller.com/search/%s/%s"
)

// SourcePublic marks results taken from the public search page.
const SourcePublic = "public"

// Truecaller performs a reverse lookup. With an API token it queries the
// search API; without one it probes the public search page.
type Truecaller struct {
	fetcher  Fetcher
	token    string
	endpoint string
	public   string
}

// NewTruecaller constructs the provider. Empty endpoints select the defaults.
func NewTruecaller(fetcher Fetcher, token, endpoint, publicPattern string) *Truecaller {
	if endpoint == "" {
		endpoint = TruecallerSearchEndpoint
	}
	if publicPattern == "" {
		publicPattern = TruecallerPublicURL
	}
	return &Truecaller{fetcher: fetcher, token: token, endpoint: endpoint, public: publicPattern}
}

type truecallerSearch struct {
	Data []truecallerProfile `json:"data"`
}

type truecallerProfile struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Phones []struct {
		E164Format  string `json:"e164Format"`
		NumberType  string `json:"numberType"`
		Carrier     string `json:"carrier"`
		CountryCode string `json:"countryCode"`
	} `json:"phones"`
	Addresses []struct {
		City        string `json:"city"`
		CountryCode string `json:"countryCode"`
	} `json:"addresses"`
	InternetAddresses []struct {
		ID      string `json:"id"`
		Service string `json:"service"`
	} `json:"internetAddresses"`
}

// Lookup implements Provider.
func (t *Truecaller) Lookup(ctx context.Context, number phone.Number) domain.LookupResult {
	if t.token == "" {
		return t.probe(ctx, number)
	}

	q := url.Values{}
	q.Set("q", number.Digits())
	q.Set("countryCode", number.RegionCode())
	q.Set("type", "4")
	q.Set("encoding", "json")
	target := t.endpoint + "?" + q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	header.Set("Accept", "application/json")

	resp, err := t.fetcher.Get(ctx, target, header)
	if err != nil {
		return domain.Failed(target, failureReason(err))
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NotFound(target)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.Failed(target, "unauthorized")
	case resp.StatusCode != http.StatusOK:
		return domain.Failedf(target, "http status %d", resp.StatusCode)
	}

	var body truecallerSearch
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return domain.Failedf(target, "decode response: %v", err)
	}
	if len(body.Data) == 0 || strings.TrimSpace(body.Data[0].Name) == "" {
		return domain.NotFound(target)
	}
	return domain.Found(target, body.Data[0].details())
}

func (p truecallerProfile) details() map[string]string {
	d := map[string]string{"name": strings.TrimSpace(p.Name)}
	putNonEmpty(d, "gender", p.Gender)
	if len(p.Phones) > 0 {
		putNonEmpty(d, "carrier", p.Phones[0].Carrier)
		putNonEmpty(d, "number_type", strings.ToLower(p.Phones[0].NumberType))
	}
	if len(p.Addresses) > 0 {
		putNonEmpty(d, "city", p.Addresses[0].City)
		putNonEmpty(d, "country_code", p.Addresses[0].CountryCode)
	}
	for _, ia := range p.InternetAddresses {
		if ia.Service == "email" {
			putNonEmpty(d, "email", ia.ID)
			break
		}
	}
	return d
}

func (t *Truecaller) probe(ctx context.Context, number phone.Number) domain.LookupResult {
	target := fmt.Sprintf(t.public, strings.ToLower(number.RegionCode()), number.NationalNumber())

	resp, err := t.fetcher.Get(ctx, target, nil)
	if err != nil {
		return domain.Failed(target, failureReason(err))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NotFound(target)
	}
	details := ExtractMeta(resp.Body)
	if details == nil {
		details = make(map[string]string, 1)
	}
	details["source"] = SourcePublic
	return domain.Found(target, details)
}
