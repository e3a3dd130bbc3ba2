package weburl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Pre-compiled CIDR networks for reserved ranges net.IP does not classify.
var (
	cgnat    *net.IPNet // 100.64.0.0/10 - Carrier-grade NAT
	v6unique *net.IPNet // fc00::/7 - IPv6 unique local
	v6link   *net.IPNet // fe80::/10 - IPv6 link-local
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func init() {
	var err error

	_, cgnat, err = net.ParseCIDR("100.64.0.0/10")
	if err != nil {
		panic("invalid CGNAT CIDR: " + err.Error())
	}
	_, v6unique, err = net.ParseCIDR("fc00::/7")
	if err != nil {
		panic("invalid IPv6 unique local CIDR: " + err.Error())
	}
	_, v6link, err = net.ParseCIDR("fe80::/10")
	if err != nil {
		panic("invalid IPv6 link-local CIDR: " + err.Error())
	}
}

// Kind is the transport a location resolves to.
type Kind int

const (
	// KindFile is a local path or file:// URL.
	KindFile Kind = iota
	// KindHTTP is an http:// or https:// URL.
	KindHTTP
)

// Classify reports how location should be read. For KindFile the returned
// string is the local filesystem path.
func Classify(location string) (Kind, string, error) {
	loc := strings.TrimSpace(location)
	if loc == "" {
		return KindFile, "", fmt.Errorf("empty location")
	}

	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare path; a one-letter scheme is a Windows drive.
		return KindFile, loc, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return KindHTTP, loc, nil
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return KindFile, "", fmt.Errorf("file URL without path: %s", loc)
		}
		return KindFile, filepath.FromSlash(p), nil
	default:
		return KindFile, "", fmt.Errorf("unsupported scheme %q in %s", u.Scheme, loc)
	}
}

// ValidateURL validates a URL for security (SSRF prevention).
// It requires HTTPS and blocks localhost, private IPs, and local domains.
func ValidateURL(rawURL string) error {
	return validate(rawURL, false)
}

// ValidateURLAllowHTTP is ValidateURL without the HTTPS requirement.
func ValidateURLAllowHTTP(rawURL string) error {
	return validate(rawURL, true)
}

func validate(rawURL string, allowHTTP bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !allowHTTP {
			return fmt.Errorf("only HTTPS URLs are allowed")
		}
	default:
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	lowHost := strings.ToLower(host)
	if lowHost == "localhost" || lowHost == "127.0.0.1" || lowHost == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(lowHost, ".local") || strings.HasSuffix(lowHost, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}

	return nil
}

// IsPrivateIP checks if an IP is in private/reserved ranges.
// It handles IPv4, IPv6, and IPv6-mapped IPv4 addresses.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// IPv6-mapped IPv4 (::ffff:x.x.x.x)
	if v4 := ip.To4(); v4 != nil {
		ip = v4
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
			return true
		}
	}

	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}

// FileName derives a filesystem-safe base name for a location, used when
// staging downloads. Query strings are ignored. Locations without a usable
// last path segment get a hash-based name.
func FileName(location string) string {
	var base string
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		base = path.Base(u.Path)
	} else {
		base = filepath.Base(location)
	}

	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "._")
	if base == "" || base == "/" {
		hash := sha256.Sum256([]byte(location))
		return "download-" + hex.EncodeToString(hash[:8])
	}
	return base
}

// ExtractDomain returns the host of a URL without port, or "" when unparsable.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
