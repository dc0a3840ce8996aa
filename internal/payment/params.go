package payment

import (
	"net/url"
	"sort"
	"strings"
)

// Params is the flat key-value parameter set exchanged with a gateway.
//
// Canonicalize produces the exact string the gateway signs: keys sorted
// lexicographically, joined as key=value pairs with '&', values raw and
// unescaped. URL encoding for transport is a separate step (Encode); mixing
// the two breaks signature verification against the gateway.
type Params map[string]string

// Canonicalize returns the signing string. Empty values are skipped, matching
// gateway behaviour.
func (p Params) Canonicalize() string {
	keys := make([]string, 0, len(p))
	for k, v := range p {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k])
	}
	return b.String()
}

// Encode returns the URL-encoded query string for transport.
func (p Params) Encode() string {
	values := url.Values{}
	for k, v := range p {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

// Clone returns a shallow copy, used to strip signature fields before
// re-canonicalizing an inbound callback.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
