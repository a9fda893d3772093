// Package provider defines the lookup provider contract, the ordered registry
// the aggregator fans out over, and the built-in providers for every source
// phonescope knows about.
//
// A provider never returns an error and never panics on purpose: every fault
// is folded into a domain.Failed result so that one source cannot abort a
// batch.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/httpclient"
	"github.com/polisai/phonescope/pkg/phone"
)

// Report categories.
const (
	CategoryBasicInfo     = "basic_info"
	CategoryCarrierInfo   = "carrier_info"
	CategoryLocation      = "location"
	CategorySocialMedia   = "social_media"
	CategoryWhatsAppIntel = "whatsapp_intel"
	CategoryReverseLookup = "reverse_lookup"
)

// Provider looks a number up in one external source.
type Provider interface {
	Lookup(ctx context.Context, number phone.Number) domain.LookupResult
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, number phone.Number) domain.LookupResult

// Lookup calls f.
func (f Func) Lookup(ctx context.Context, number phone.Number) domain.LookupResult {
	return f(ctx, number)
}

// Entry binds a provider to its report slot.
type Entry struct {
	Name     string
	Category string
	// Timeout overrides the aggregator's default per-call budget when positive.
	Timeout time.Duration
	// Browser marks lookups that drive a headless browser. They fall back to
	// the browser budget instead of the ordinary one.
	Browser  bool
	Provider Provider
}

// Fetcher is the subset of the HTTP client used by HTTP-backed providers.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*httpclient.Response, error)
}
