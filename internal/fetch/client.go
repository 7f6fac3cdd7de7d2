// Package fetch downloads candidate logo images with bounded size, timeouts
// and retries.
package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// BrowserUserAgent is sent on every outbound request. Many sites refuse
// requests that do not look like they come from a browser.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ImageAccept is the Accept header used for image downloads.
const ImageAccept = "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8"

// SetBrowserHeaders makes req look like an ordinary browser request.
func SetBrowserHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}

// NewHTTPClient builds a client with a dial timeout for connection setup and
// an overall timeout covering the whole exchange. maxRedirects < 0 keeps the
// net/http default policy.
func NewHTTPClient(connectTimeout, readTimeout time.Duration, maxRedirects int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout

	client := &http.Client{
		Timeout:   connectTimeout + readTimeout,
		Transport: transport,
	}
	if maxRedirects >= 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
			}
			return nil
		}
	}
	return client
}

// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
var ErrTooManyRedirects = errors.New("too many redirects")
