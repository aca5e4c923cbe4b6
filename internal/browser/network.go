package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"indiflow/internal/models"
)

// WatchNetwork enables the network domain and reports every completed XHR or
// fetch request to sink until ctx is done.
func (p *Page) WatchNetwork(ctx context.Context, sink func(models.NetworkCall)) error {
	var mu sync.Mutex
	pending := map[network.RequestID]*models.NetworkCall{}

	chromedp.ListenTarget(p.tab, func(ev interface{}) {
		if ctx.Err() != nil {
			return
		}
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if e.Type != network.ResourceTypeXHR && e.Type != network.ResourceTypeFetch {
				return
			}
			mu.Lock()
			pending[e.RequestID] = &models.NetworkCall{
				ID:             string(e.RequestID),
				Method:         e.Request.Method,
				URL:            e.Request.URL,
				Timestamp:      time.Now(),
				RequestHeaders: headerMap(e.Request.Headers),
			}
			mu.Unlock()
		case *network.EventResponseReceived:
			mu.Lock()
			call, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok {
				return
			}
			call.Status = int(e.Response.Status)
			call.ResponseHeaders = headerMap(e.Response.Headers)
			call.Duration = time.Since(call.Timestamp).Milliseconds()
			// listeners must not block the event loop of the tab
			go sink(*call)
		case *network.EventLoadingFailed:
			mu.Lock()
			delete(pending, e.RequestID)
			mu.Unlock()
		}
	})
	return p.run(ctx, network.Enable())
}

func headerMap(h network.Headers) models.HeaderMap {
	if len(h) == 0 {
		return nil
	}
	out := make(models.HeaderMap, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}
