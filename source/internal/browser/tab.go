package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Render loads pageURL in a fresh tab and returns the serialised DOM after
// the load event (plus the configured settle delay). A failure to open the
// tab triggers one relaunch, which covers a Chrome that crashed between
// calls.
func (m *Manager) Render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := m.Browser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := m.openTab(b)
	if err != nil {
		m.cfg.Logger.Warn("browser: open tab failed, relaunching", "error", err)
		if b, err = m.Relaunch(ctx); err != nil {
			return nil, err
		}
		if page, err = m.openTab(b); err != nil {
			return nil, fmt.Errorf("browser: create tab: %w", err)
		}
	}
	defer page.Close()

	filter := newRequestFilter(m.cfg.ResourceBlocking, m.cfg.URLGuard)
	if filter.active() {
		router := filter.hijack(page)
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		if gerr := filter.err(); gerr != nil {
			return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, gerr)
		}
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	if err := m.checkLanded(page, filter); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if m.cfg.Settle > 0 {
		select {
		case <-time.After(m.cfg.Settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}

	m.cfg.Logger.Debug("browser: rendered", "url", pageURL, "size", len(res.Value.Str()))
	return []byte(res.Value.Str()), nil
}

func (m *Manager) openTab(b *rod.Browser) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, err
	}

	return page, nil
}

// checkLanded re-validates the URL the tab ended up on, which covers
// redirects the request filter could not see (a refused document that
// left the previous page in place, for instance).
func (m *Manager) checkLanded(page *rod.Page, filter *requestFilter) error {
	if err := filter.err(); err != nil {
		return err
	}
	if m.cfg.URLGuard == nil {
		return nil
	}
	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("page info: %w", err)
	}
	if !isHTTP(info.URL) {
		return nil
	}
	return m.cfg.URLGuard(info.URL)
}
