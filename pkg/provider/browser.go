package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/polisai/phonescope/pkg/domain"
	"github.com/polisai/phonescope/pkg/phone"
)

// statusScript reads the profile status line rendered on the chat page.
const statusScript = `(() => { const el = document.querySelector('.status'); return el ? el.innerText : ''; })()`

// Session is one browser tab.
type Session interface {
	StatusText(ctx context.Context, url string) (string, error)
	Close() error
}

// SessionFactory starts browser sessions. Sessions are bound to the context
// they were created with.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// ChromeFactory launches headless Chrome through chromedp.
type ChromeFactory struct {
	// ExecPath selects the Chrome binary; empty means search PATH.
	ExecPath  string
	UserAgent string
}

// NewSession starts a browser and opens a tab.
func (f ChromeFactory) NewSession(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.ExecPath))
	}
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// An empty Run forces the browser to start so launch errors surface here.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrBrowserUnavailable, err)
	}

	return &chromeSession{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *chromeSession) StatusText(ctx context.Context, url string) (string, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var text string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(statusScript, &text),
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// WhatsAppStatus renders the chat page in a browser and reads the profile
// status line.
type WhatsAppStatus struct {
	factory SessionFactory
	pattern string
}

// NewWhatsAppStatus constructs the provider. An empty pattern selects WhatsAppURL.
func NewWhatsAppStatus(factory SessionFactory, pattern string) *WhatsAppStatus {
	if pattern == "" {
		pattern = WhatsAppURL
	}
	return &WhatsAppStatus{factory: factory, pattern: pattern}
}

// Lookup implements Provider.
func (w *WhatsAppStatus) Lookup(ctx context.Context, number phone.Number) domain.LookupResult {
	target := fmt.Sprintf(w.pattern, number.Digits())

	session, err := w.factory.NewSession(ctx)
	if err != nil {
		return domain.Failed(target, failureReason(err))
	}
	defer session.Close()

	text, err := session.StatusText(ctx, target)
	if err != nil {
		return domain.Failed(target, failureReason(err))
	}
	if text == "" {
		return domain.NotFound(target)
	}
	return domain.Found(target, map[string]string{"status_text": text})
}
