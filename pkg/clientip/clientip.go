package clientip

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/campusmind/twofactor/pkg/logger"
)

// Headers consulted in order when the immediate peer is a trusted proxy.
var forwardHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Resolver extracts the client address of a request.
type Resolver struct {
	trusted []netip.Prefix
}

// New returns a resolver that honours forwarding headers only when the
// peer address falls inside one of the trusted prefixes. With no prefixes
// the peer address is always used.
func New(trusted ...netip.Prefix) *Resolver {
	return &Resolver{trusted: trusted}
}

// ParsePrefixes parses a list of CIDRs or bare addresses.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// IP returns the normalized client address, or "" when none is valid.
func (res *Resolver) IP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	if !res.isTrusted(peer) {
		return format(peer)
	}

	for _, h := range forwardHeaders {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		// X-Forwarded-For lists the original client first.
		for candidate := range strings.SplitSeq(value, ",") {
			if addr, ok := parse(candidate); ok {
				return addr.String()
			}
		}
	}
	return format(peer)
}

func (res *Resolver) isTrusted(peer netip.Addr) bool {
	if !peer.IsValid() {
		return false
	}
	for _, p := range res.trusted {
		if p.Contains(peer) {
			return true
		}
	}
	return false
}

func peerAddr(remote string) netip.Addr {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, _ := parse(host)
	return addr
}

func parse(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

func format(addr netip.Addr) string {
	if !addr.IsValid() {
		return ""
	}
	return addr.String()
}

type contextKey struct{}

// WithContext stores ip in ctx.
func WithContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the address stored by Middleware.
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Middleware resolves the client address once per request.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), res.IP(r))))
	})
}

// LoggerExtractor adds the client address to records logged with a request context.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if ip := FromContext(ctx); ip != "" {
			return logger.ClientIP(ip), true
		}
		return slog.Attr{}, false
	}
}
