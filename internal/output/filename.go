package output

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"techlookup/pkg/serrors"

	"golang.org/x/net/publicsuffix"
)

// Parts splits the host of rawURL into its subdomain and registered domain
// label, without the public suffix. "https://shop.example.co.uk/path" yields
// ("shop", "example"). Hosts that have no registrable domain, such as IP
// addresses, come back whole as the domain.
func Parts(rawURL string) (subdomain, domainName string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", serrors.Wrap(serrors.ErrInternal, err, "invalid result URL %q", rawURL)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", "", serrors.With(serrors.ErrInternal, "result URL %q has no host", rawURL)
	}
	if net.ParseIP(host) != nil {
		return "", host, nil
	}

	registered, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", host, nil //nolint: nilerr
	}
	suffix, _ := publicsuffix.PublicSuffix(host)

	domainName = strings.TrimSuffix(registered, "."+suffix)
	subdomain = strings.TrimSuffix(strings.TrimSuffix(host, registered), ".")

	return subdomain, domainName, nil
}

// Filename derives the per-domain output file name for rawURL:
// "<subdomain>_<domain>.json".
func Filename(rawURL string) (string, error) {
	sub, name, err := Parts(rawURL)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s_%s.json", sub, name), nil
}
