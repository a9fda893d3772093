package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/phone"
)

// Presence URL patterns. The single verb receives the number's digits.
const (
	WhatsAppURL         = "https://wa.me/%s"
	WhatsAppBusinessURL = "https://wa.me/business/%s"
	TelegramURL         = "https://t.me/+%s"
	FacebookURL         = "https://www.facebook.com/phone/%s"
	InstagramURL        = "https://www.instagram.com/accounts/password/reset/?phone=%s"
	LinkedInURL         = "https://www.linkedin.com/pub/dir?phone=%s"
	TikTokURL           = "https://www.tiktok.com/search/user?q=%s"
)

// Presence probes a public page that answers 200 when an account is tied to
// the number. Any other status is a negative answer; a transport error is a
// failure.
type Presence struct {
	fetcher     Fetcher
	pattern     string
	header      http.Header
	extractMeta bool
}

// PresenceOption customizes a Presence provider.
type PresenceOption func(*Presence)

// WithMeta copies OpenGraph title and description from the page into the
// result details.
func WithMeta() PresenceOption {
	return func(p *Presence) { p.extractMeta = true }
}

// WithHeader sends extra headers with every probe.
func WithHeader(header http.Header) PresenceOption {
	return func(p *Presence) { p.header = header.Clone() }
}

// NewPresence builds a probe for pattern, which must contain one %s verb.
func NewPresence(fetcher Fetcher, pattern string, opts ...PresenceOption) *Presence {
	p := &Presence{fetcher: fetcher, pattern: pattern}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// URL returns the probed address for number.
func (p *Presence) URL(number phone.Number) string {
	return fmt.Sprintf(p.pattern, number.Digits())
}

// Lookup implements Provider.
func (p *Presence) Lookup(ctx context.Context, number phone.Number) domain.LookupResult {
	target := p.URL(number)

	resp, err := p.fetcher.Get(ctx, target, p.header)
	if err != nil {
		return domain.Failed(target, failureReason(err))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.NotFound(target)
	}

	var details map[string]string
	if p.extractMeta {
		details = ExtractMeta(resp.Body)
	}
	return domain.Found(target, details)
}

// failureReason maps context errors to the stable reasons used in reports.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ReasonTimeout
	case errors.Is(err, context.Canceled):
		return domain.ReasonCancelled
	default:
		return err.Error()
	}
}
