// Package wappalyzer provides a lookup.Client implementation backed by the
// Wappalyzer lookup API (v2).
package wappalyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"techlookup/pkg/domain"
	"techlookup/pkg/lookup"
	"techlookup/pkg/serrors"

	"github.com/go-faster/jx"
)

const (
	// DefaultBalanceURL is the endpoint used to validate a key and read its credits.
	DefaultBalanceURL = "https://api.wappalyzer.com/credits/v2/balance/"
	// DefaultLookupURL is the batched technology lookup endpoint.
	DefaultLookupURL = "https://api.wappalyzer.com/lookup/v2/"

	// KeyHeader carries the API key on every request.
	KeyHeader = "x-api-key"
	// CreditsHeader reports the credits left after a lookup.
	CreditsHeader = "wappalyzer-credits-remaining"
)

// Options configure the endpoints the client talks to. Empty fields fall back
// to the public API.
type Options struct {
	BalanceURL string
	LookupURL  string
}

// Client talks to the Wappalyzer REST API and fulfills the lookup.Client
// interface. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client // httpClient performs HTTP requests to the API
	balanceURL string
	lookupURL  string
}

// ParseCreditsRemaining extracts the remaining credit count from lookup
// response headers.
func ParseCreditsRemaining(h http.Header) (int, error) {
	v := strings.TrimSpace(h.Get(CreditsHeader))
	if v == "" {
		return 0, fmt.Errorf("missing %s header", CreditsHeader)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s header: %w", CreditsHeader, err)
	}

	return n, nil
}

// Balance validates key against the balance endpoint and returns its credits.
// The endpoint answers with either {"credits": n} or {"message": "..."}.
func (c *Client) Balance(ctx context.Context, key string) (lookup.Balance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.balanceURL, nil)
	if err != nil {
		return lookup.Balance{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set(KeyHeader, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lookup.Balance{}, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return lookup.Balance{}, fmt.Errorf("could not read response body: %w", err)
	}

	var (
		message    string
		hasMessage bool
		credits    int
		hasCredits bool
	)
	if err := jx.DecodeBytes(b).ObjBytes(func(d *jx.Decoder, k []byte) error {
		switch string(k) {
		case "message":
			hasMessage = true
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err //nolint: wrapcheck
			}
			message = v
		case "credits":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			v, err := d.Int()
			if err != nil {
				return err //nolint: wrapcheck
			}
			credits, hasCredits = v, true
		default:
			return d.Skip()
		}

		return nil
	}); err != nil {
		return lookup.Balance{}, serrors.Wrap(serrors.ErrInternal, err, "system error, please try again")
	}

	switch {
	case hasMessage:
		return lookup.Balance{}, serrors.With(serrors.ErrUnauthorized, "invalid API key: %s", message)
	case !hasCredits:
		return lookup.Balance{}, serrors.With(serrors.ErrInternal, "system error, please try again")
	case credits <= 0:
		return lookup.Balance{}, serrors.With(serrors.ErrNoCredit, "no credit available to use")
	}

	return lookup.Balance{Credits: credits}, nil
}

// Lookup submits URLs as one comma-joined batch and returns the decoded
// records together with the credits left on the key.
func (c *Client) Lookup(ctx context.Context, key string, URLs []string) (lookup.LookupRes, error) {
	u, err := url.Parse(c.lookupURL)
	if err != nil {
		return lookup.LookupRes{}, fmt.Errorf("could not parse lookup URL: %w", err)
	}
	q := u.Query()
	q.Set("urls", strings.Join(URLs, ","))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return lookup.LookupRes{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set(KeyHeader, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lookup.LookupRes{}, fmt.Errorf("could not send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return lookup.LookupRes{}, fmt.Errorf("could not read response body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return lookup.LookupRes{}, serrors.With(serrors.ErrBadRequest,
			"error with the domain list: %s", strings.TrimSpace(string(b)))
	case resp.StatusCode == http.StatusTooManyRequests:
		return lookup.LookupRes{}, serrors.With(serrors.ErrRateLimited,
			"rate limited: %s", strings.TrimSpace(string(b)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return lookup.LookupRes{}, serrors.With(serrors.ErrUnavailable,
			"lookup failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	// successful
	results, err := domain.DecodeResults(b)
	if err != nil {
		return lookup.LookupRes{}, fmt.Errorf("could not decode response: %w", err)
	}
	credits, err := ParseCreditsRemaining(resp.Header)
	if err != nil {
		return lookup.LookupRes{Results: results}, serrors.Wrap(serrors.ErrInternal, err, "could not read remaining credits")
	}

	return lookup.LookupRes{Results: results, CreditsRemaining: credits}, nil
}

// Ensure Client conforms to the lookup.Client interface at compile time.
var _ lookup.Client = (*Client)(nil)

// New constructs a Client that uses the provided http.Client to interact
// with the API.
func New(httpClient *http.Client, opts Options) *Client {
	if opts.BalanceURL == "" {
		opts.BalanceURL = DefaultBalanceURL
	}
	if opts.LookupURL == "" {
		opts.LookupURL = DefaultLookupURL
	}

	return &Client{
		httpClient: httpClient,
		balanceURL: opts.BalanceURL,
		lookupURL:  opts.LookupURL,
	}
}
