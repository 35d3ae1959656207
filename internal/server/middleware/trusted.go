package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedCIDR admits only clients inside one of the comma separated subnets.
// The client is the connection peer. X-Real-IP replaces it only when the peer
// is one of the trusted proxies. An empty subnet list admits everyone.
func TrustedCIDR(subnets, proxies string) (func(http.Handler) http.Handler, error) {
	allowed, err := parseCIDRs(subnets)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted subnet: %w", err)
	}
	fronts, err := parseCIDRs(proxies)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted proxy: %w", err)
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, fronts)
			if ip == nil || !contains(allowed, ip) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func parseCIDRs(list string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", c, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func clientIP(r *http.Request, proxies []*net.IPNet) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil || !contains(proxies, peer) {
		return peer
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip
	}
	return peer
}

func contains(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
