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

// NumverifyEndpoint is the apilayer validation API.
const NumverifyEndpoint = "http://apilayer.net/api/validate"

const redacted = "REDACTED"

// SourceOffline marks results computed locally because no API key was set.
const SourceOffline = "offline"

// Numverify validates numbers against the numverify API. Without an API key it
// degrades to offline validation.
type Numverify struct {
	fetcher  Fetcher
	apiKey   string
	endpoint string
}

// NewNumverify constructs the provider. An empty endpoint selects
// NumverifyEndpoint.
func NewNumverify(fetcher Fetcher, apiKey, endpoint string) *Numverify {
	if endpoint == "" {
		endpoint = NumverifyEndpoint
	}
	return &Numverify{fetcher: fetcher, apiKey: apiKey, endpoint: endpoint}
}

type numverifyResponse struct {
	Valid               bool   `json:"valid"`
	Number              string `json:"number"`
	InternationalFormat string `json:"international_format"`
	CountryCode         string `json:"country_code"`
	CountryName         string `json:"country_name"`
	Location            string `json:"location"`
	Carrier             string `json:"carrier"`
	LineType            string `json:"line_type"`

	Success *bool `json:"success"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}

// Lookup implements Provider.
func (n *Numverify) Lookup(ctx context.Context, number phone.Number) domain.LookupResult {
	if n.apiKey == "" {
		return n.offline(number)
	}

	// The key is kept out of the URL recorded in the report.
	public := n.endpoint + "?number=" + url.QueryEscape(number.Digits())
	q := url.Values{}
	q.Set("access_key", n.apiKey)
	q.Set("number", number.Digits())
	q.Set("format", "1")

	resp, err := n.fetcher.Get(ctx, n.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Failed(public, n.scrub(failureReason(err)))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Failedf(public, "http status %d", resp.StatusCode)
	}

	var body numverifyResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return domain.Failedf(public, "decode response: %v", err)
	}
	if body.Error != nil {
		return domain.Failedf(public, "api error %d: %s", body.Error.Code, body.Error.Type)
	}
	if !body.Valid {
		return domain.NotFound(public)
	}

	details := map[string]string{}
	putNonEmpty(details, "line_type", body.LineType)
	putNonEmpty(details, "carrier", body.Carrier)
	putNonEmpty(details, "location", body.Location)
	putNonEmpty(details, "country_name", body.CountryName)
	putNonEmpty(details, "country_code", body.CountryCode)
	putNonEmpty(details, "international", body.InternationalFormat)
	return domain.Found(public, details)
}

func (n *Numverify) offline(number phone.Number) domain.LookupResult {
	if !number.Valid() {
		return domain.NotFound("")
	}
	details := map[string]string{
		"source":       SourceOffline,
		"line_type":    number.Type(),
		"country_code": number.RegionCode(),
	}
	putNonEmpty(details, "carrier", number.Carrier())
	putNonEmpty(details, "location", number.Region())
	return domain.Found("", details)
}

// scrub removes the API key from text that ends up in reports and logs.
func (n *Numverify) scrub(reason string) string {
	reason = strings.ReplaceAll(reason, url.QueryEscape(n.apiKey), redacted)
	return strings.ReplaceAll(reason, n.apiKey, redacted)
}

// String is used in log lines; it never includes the key.
func (n *Numverify) String() string {
	mode := "api"
	if n.apiKey == "" {
		mode = SourceOffline
	}
	return fmt.Sprintf("numverify(%s)", mode)
}
