package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

var defaultTrustedProxies = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
}

var probePatterns = []string{
	"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
	"<script", "union select", "etc/passwd",
}

// Detector resolves client addresses behind trusted proxies and flags
// requests that look like vulnerability scans.
type Detector struct {
	trustedProxies []*net.IPNet
	probes         atomic.Int64
}

// NewDetector trusts loopback and private ranges plus any extra CIDRs.
func NewDetector(extraTrusted ...string) (*Detector, error) {
	d := &Detector{}
	for _, cidr := range append(append([]string{}, defaultTrustedProxies...), extraTrusted...) {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
		}
		d.trustedProxies = append(d.trustedProxies, network)
	}
	return d, nil
}

// ClientIP returns the caller's address. Forwarding headers are honoured only
// when the direct peer is a trusted proxy.
func (d *Detector) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsProbe reports whether the path or query carries a common scanner pattern.
func (d *Detector) IsProbe(r *http.Request) bool {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, p := range probePatterns {
		if strings.Contains(target, p) {
			d.probes.Add(1)
			return true
		}
	}
	return false
}

// Probes returns how many requests IsProbe has flagged.
func (d *Detector) Probes() int64 {
	return d.probes.Load()
}
