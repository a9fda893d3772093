package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/phonescope/internal/governance"
	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/httpclient"
	"github.com/polisai/phonescope/pkg/phone"
)

const italianMobile = "+393401234567"

type fakeFetcher struct {
	mu       sync.Mutex
	status   map[string]int
	body     map[string]string
	err      error
	requests []string
	headers  []http.Header
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string, header http.Header) (*httpclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, rawURL)
	f.headers = append(f.headers, header)
	if f.err != nil {
		return nil, f.err
	}
	status, ok := f.status[rawURL]
	if !ok {
		status = http.StatusNotFound
	}
	return &httpclient.Response{URL: rawURL, StatusCode: status, Body: []byte(f.body[rawURL])}, nil
}

type fakeSession struct {
	text   string
	err    error
	closed bool
}

func (s *fakeSession) StatusText(context.Context, string) (string, error) { return s.text, s.err }
func (s *fakeSession) Close() error                                      { s.closed = true; return nil }

type fakeFactory struct {
	session *fakeSession
	err     error
}

func (f *fakeFactory) NewSession(context.Context) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func testClient() *httpclient.Client {
	return httpclient.New(httpclient.Config{
		Timeout: 2 * time.Second,
		Retry:   governance.RetryConfig{MaxRetries: 0},
	}, nil)
}

func TestPresenceOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/393401234567" {
			_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Chat on WhatsApp with +39 340 123 4567"></head></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	n := phone.MustParse(italianMobile)

	found := NewPresence(testClient(), srv.URL+"/%s", WithMeta()).Lookup(context.Background(), n)
	assert.Equal(t, domain.StatusFound, found.Status)
	assert.Equal(t, srv.URL+"/393401234567", found.URL)
	assert.Equal(t, "Chat on WhatsApp with +39 340 123 4567", found.Details[DetailTitle])

	missing := NewPresence(testClient(), srv.URL+"/none/%s").Lookup(context.Background(), n)
	assert.Equal(t, domain.StatusNotFound, missing.Status)
	assert.Equal(t, domain.LabelNotFound, missing.Label())
}

func TestPresenceWithoutMetaHasNoDetails(t *testing.T) {
	f := &fakeFetcher{
		status: map[string]int{"https://wa.me/393401234567": http.StatusOK},
		body:   map[string]string{"https://wa.me/393401234567": `<meta property="og:title" content="x">`},
	}
	res := NewPresence(f, WhatsAppURL).Lookup(context.Background(), phone.MustParse(italianMobile))
	assert.True(t, res.Exists())
	assert.Equal(t, domain.LabelFound, res.Label())
	assert.Nil(t, res.Details)
}

func TestPresenceSendsHeader(t *testing.T) {
	f := &fakeFetcher{}
	h := http.Header{}
	h.Set("Accept-Language", "en")
	NewPresence(f, TelegramURL, WithHeader(h)).Lookup(context.Background(), phone.MustParse(italianMobile))

	require.Len(t, f.requests, 1)
	assert.Equal(t, "https://t.me/+393401234567", f.requests[0])
	assert.Equal(t, "en", f.headers[0].Get("Accept-Language"))
}

func TestPresenceFailures(t *testing.T) {
	n := phone.MustParse(italianMobile)

	res := NewPresence(&fakeFetcher{err: errors.New("dial tcp: connection refused")}, WhatsAppURL).Lookup(context.Background(), n)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "connection refused")

	res = NewPresence(&fakeFetcher{err: context.DeadlineExceeded}, WhatsAppURL).Lookup(context.Background(), n)
	assert.Equal(t, domain.ReasonTimeout, res.Reason)

	res = NewPresence(&fakeFetcher{err: context.Canceled}, WhatsAppURL).Lookup(context.Background(), n)
	assert.Equal(t, domain.ReasonCancelled, res.Reason)
}

func TestExtractMeta(t *testing.T) {
	html := `<html><head>
<title>Fallback</title>
<meta name="description" content="plain description">
<meta property="og:description" content="  og description  ">
</head></html>`

	d := ExtractMeta([]byte(html))
	assert.Equal(t, "Fallback", d[DetailTitle])
	assert.Equal(t, "og description", d[DetailDescription])

	assert.Nil(t, ExtractMeta(nil))
	assert.Nil(t, ExtractMeta([]byte("<html><body>nothing here</body></html>")))
}

func TestMetadataProviders(t *testing.T) {
	ctx := context.Background()
	n := phone.MustParse("+1 650 253 0000")

	basic := BasicInfo().Lookup(ctx, n)
	require.Equal(t, domain.StatusFound, basic.Status)
	assert.Equal(t, "+16502530000", basic.Details["e164"])
	assert.Equal(t, "US", basic.Details["region_code"])
	assert.Equal(t, "1", basic.Details["country_code"])

	geo := Geocoder().Lookup(ctx, n)
	require.Equal(t, domain.StatusFound, geo.Status)
	assert.NotEmpty(t, geo.Details["region"])

	tz := Timezone().Lookup(ctx, n)
	require.Equal(t, domain.StatusFound, tz.Status)
	assert.Contains(t, tz.Details["timezones"], "America/")
}

func TestMetadataProvidersOnUnparsedNumber(t *testing.T) {
	ctx := context.Background()
	var n phone.Number

	for name, p := range map[string]Provider{
		"phonenumbers": BasicInfo(),
		"carrier":      Carrier(),
		"geocoder":     Geocoder(),
		"timezone":     Timezone(),
		"numverify":    NewNumverify(&fakeFetcher{}, "", ""),
	} {
		assert.Equal(t, domain.StatusNotFound, p.Lookup(ctx, n).Status, name)
	}
}

func TestNumverifyAPI(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("access_key")
		switch r.URL.Query().Get("number") {
		case "393401234567":
			_, _ = w.Write([]byte(`{"valid":true,"number":"393401234567","country_code":"IT","country_name":"Italy (Italian Republic)","location":"","carrier":"Telecom Italia","line_type":"mobile"}`))
		case "16502530000":
			_, _ = w.Write([]byte(`{"valid":false}`))
		default:
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"type":"invalid_access_key","info":"bad key"}}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	nv := NewNumverify(testClient(), "secret", srv.URL)

	res := nv.Lookup(ctx, phone.MustParse(italianMobile))
	require.Equal(t, domain.StatusFound, res.Status)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Telecom Italia", res.Details["carrier"])
	assert.Equal(t, "mobile", res.Details["line_type"])
	assert.NotContains(t, res.URL, "secret")
	_, hasLocation := res.Details["location"]
	assert.False(t, hasLocation, "empty fields are omitted")

	res = nv.Lookup(ctx, phone.MustParse("+1 650 253 0000"))
	assert.Equal(t, domain.StatusNotFound, res.Status)

	res = nv.Lookup(ctx, phone.MustParse("+44 20 7946 0958"))
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "invalid_access_key")
	assert.NotContains(t, nv.String(), "secret")
}

func TestNumverifyNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	res := NewNumverify(testClient(), "k", srv.URL).Lookup(context.Background(), phone.MustParse(italianMobile))
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "http status 502", res.Reason)
}

func TestNumverifyTransportErrorKeepsKeyOutOfReason(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/api/validate"
	srv.Close()

	res := NewNumverify(testClient(), "SECRETKEY123", endpoint).Lookup(context.Background(), phone.MustParse(italianMobile))

	require.Equal(t, domain.StatusFailed, res.Status)
	assert.NotEmpty(t, res.Reason)
	assert.NotContains(t, res.Reason, "SECRETKEY123")
	assert.NotContains(t, res.URL, "SECRETKEY123")
}

func TestNumverifyScrubsKeyFromFetcherErrors(t *testing.T) {
	f := &fakeFetcher{err: errors.New(`Get "http://apilayer.net/api/validate?access_key=k%2By": connection reset (key k+y)`)}

	res := NewNumverify(f, "k+y", "").Lookup(context.Background(), phone.MustParse(italianMobile))

	require.Equal(t, domain.StatusFailed, res.Status)
	assert.NotContains(t, res.Reason, "k+y")
	assert.NotContains(t, res.Reason, "k%2By")
	assert.Contains(t, res.Reason, "connection reset")
}

func TestNumverifyOffline(t *testing.T) {
	f := &fakeFetcher{}
	res := NewNumverify(f, "", "").Lookup(context.Background(), phone.MustParse("+1 650 253 0000"))

	require.Equal(t, domain.StatusFound, res.Status)
	assert.Equal(t, SourceOffline, res.Details["source"])
	assert.Equal(t, "US", res.Details["country_code"])
	assert.Empty(t, f.requests, "offline mode makes no requests")
}

func TestTruecallerAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") == "393401234567" {
			_, _ = w.Write([]byte(`{"data":[{"name":"Mario Rossi","gender":"MALE","phones":[{"carrier":"TIM","numberType":"MOBILE"}],"addresses":[{"city":"Roma","countryCode":"IT"}],"internetAddresses":[{"id":"mario@example.com","service":"email"}]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	tc := NewTruecaller(testClient(), "token", srv.URL, "")

	res := tc.Lookup(ctx, phone.MustParse(italianMobile))
	require.Equal(t, domain.StatusFound, res.Status)
	assert.Equal(t, "Mario Rossi", res.Details["name"])
	assert.Equal(t, "TIM", res.Details["carrier"])
	assert.Equal(t, "mobile", res.Details["number_type"])
	assert.Equal(t, "Roma", res.Details["city"])
	assert.Equal(t, "mario@example.com", res.Details["email"])

	res = tc.Lookup(ctx, phone.MustParse("+1 650 253 0000"))
	assert.Equal(t, domain.StatusNotFound, res.Status)

	res = NewTruecaller(testClient(), "wrong", srv.URL, "").Lookup(ctx, phone.MustParse(italianMobile))
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Equal(t, "unauthorized", res.Reason)
}

func TestTruecallerPublicProbe(t *testing.T) {
	public := "https://www.truecaller.com/search/it/3401234567"
	f := &fakeFetcher{
		status: map[string]int{public: http.StatusOK},
		body:   map[string]string{public: `<title>Mario Rossi</title>`},
	}

	res := NewTruecaller(f, "", "", "").Lookup(context.Background(), phone.MustParse(italianMobile))
	require.Equal(t, domain.StatusFound, res.Status)
	assert.Equal(t, public, res.URL)
	assert.Equal(t, SourcePublic, res.Details["source"])
	assert.Equal(t, "Mario Rossi", res.Details[DetailTitle])

	res = NewTruecaller(&fakeFetcher{}, "", "", "").Lookup(context.Background(), phone.MustParse(italianMobile))
	assert.Equal(t, domain.StatusNotFound, res.Status)
}

func TestWhatsAppStatus(t *testing.T) {
	ctx := context.Background()
	n := phone.MustParse(italianMobile)

	session := &fakeSession{text: "Hey there! I am using WhatsApp."}
	res := NewWhatsAppStatus(&fakeFactory{session: session}, "").Lookup(ctx, n)
	require.Equal(t, domain.StatusFound, res.Status)
	assert.Equal(t, "Hey there! I am using WhatsApp.", res.Details["status_text"])
	assert.Equal(t, "https://wa.me/393401234567", res.URL)
	assert.True(t, session.closed)

	empty := &fakeSession{}
	res = NewWhatsAppStatus(&fakeFactory{session: empty}, "").Lookup(ctx, n)
	assert.Equal(t, domain.StatusNotFound, res.Status)
	assert.True(t, empty.closed)

	broken := &fakeSession{err: errors.New("navigate: net::ERR_NAME_NOT_RESOLVED")}
	res = NewWhatsAppStatus(&fakeFactory{session: broken}, "").Lookup(ctx, n)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.True(t, broken.closed, "session released on error path")

	res = NewWhatsAppStatus(&fakeFactory{err: domain.ErrBrowserUnavailable}, "").Lookup(ctx, n)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.True(t, strings.Contains(res.Reason, "browser"))
}
