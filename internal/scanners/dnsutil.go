package scanners

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// resolveA queries the configured resolver for an A record and returns the
// first address. A failed or empty answer reports ok=false; resolution
// failures are expected noise during enumeration, not errors.
func resolveA(ctx context.Context, host, resolver string, timeout time.Duration) (string, bool) {
	client := &dns.Client{Timeout: timeout}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := client.ExchangeContext(ctx, msg, resolver)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return "", false
	}

	for _, answer := range resp.Answer {
		if a, ok := answer.(*dns.A); ok {
			return a.A.String(), true
		}
	}
	return "", false
}
