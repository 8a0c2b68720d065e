package browser

import (
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// requestFilter decides the fate of every request a tab makes: configured
// resource types are dropped (the DOM is all we compare) and http(s) URLs the
// guard refuses are failed, redirect hops included.
type requestFilter struct {
	blockSet map[string]bool
	guard    func(rawURL string) error

	mu      sync.Mutex
	refused error // first guard refusal of a document request
}

func newRequestFilter(types []string, guard func(string) error) *requestFilter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}
	return &requestFilter{blockSet: blockSet, guard: guard}
}

func (f *requestFilter) active() bool {
	return len(f.blockSet) > 0 || f.guard != nil
}

// allow reports whether a request of resType to rawURL may proceed.
func (f *requestFilter) allow(resType, rawURL string) bool {
	if f.guard != nil && isHTTP(rawURL) {
		if err := f.guard(rawURL); err != nil {
			if strings.EqualFold(resType, string(proto.NetworkResourceTypeDocument)) {
				f.mu.Lock()
				if f.refused == nil {
					f.refused = err
				}
				f.mu.Unlock()
			}
			return false
		}
	}
	return !shouldBlock(f.blockSet, resType)
}

// err returns the first document request the guard refused, if any.
func (f *requestFilter) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refused
}

// hijack routes every request of page through f. The caller must Stop the
// returned router once the page is done.
func (f *requestFilter) hijack(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if !f.allow(string(ctx.Request.Type()), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// shouldBlock matches a CDP resource type against the configured names,
// accepting singular or plural ("image" or "images").
func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	return blockSet[lower] || blockSet[lower+"s"]
}

func isHTTP(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
