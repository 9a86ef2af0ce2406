package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid app proxy signature")

// ProxyOptions describes how the local route maps back onto the storefront path
type ProxyOptions struct {
	MountPrefix        string // local mount, e.g. /proxy
	FallbackPathPrefix string // used when the query has no path_prefix, e.g. /apps/rfq
}

// FallbackPathPrefix composes /<prefix>/<subpath>
func FallbackPathPrefix(prefix, subpath string) string {
	prefix = strings.Trim(prefix, "/")
	subpath = strings.Trim(subpath, "/")
	switch {
	case prefix == "" && subpath == "":
		return ""
	case subpath == "":
		return "/" + prefix
	case prefix == "":
		return "/" + subpath
	}
	return "/" + prefix + "/" + subpath
}

// BuildCanonicalMessage rebuilds the string Shopify signed before it rewrote
// /apps/<subpath>/... into our local mount. The raw query is never parsed into
// url.Values: order and percent-encoding of every kept pair must survive as-is.
func BuildCanonicalMessage(rawPath, rawQuery, mountPrefix, fallbackPathPrefix string) string {
	suffix := stripMount(rawPath, mountPrefix)

	storefrontPath := storefrontMount(rawQuery, fallbackPathPrefix) + suffix

	kept := keptQuery(rawQuery)
	if kept == "" {
		return storefrontPath
	}
	return storefrontPath + "?" + kept
}

// stripMount removes mount from the front of path on a segment boundary:
// /proxy strips /proxy and /proxy/x, never /proxyfoo.
func stripMount(path, mount string) string {
	mount = strings.TrimRight(mount, "/")
	if mount == "" || !strings.HasPrefix(path, mount) {
		return path
	}
	rest := path[len(mount):]
	if rest != "" && rest[0] != '/' {
		return path
	}
	return rest
}

func storefrontMount(rawQuery, fallback string) string {
	for _, fragment := range strings.Split(rawQuery, "&") {
		key, value, _ := strings.Cut(fragment, "=")
		if key != "path_prefix" {
			continue
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return value
		}
		return decoded
	}
	return fallback
}

func keptQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	fragments := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if fragment == "" || isSignatureFragment(fragment) {
			continue
		}
		kept = append(kept, fragment)
	}
	return strings.Join(kept, "&")
}

func isSignatureFragment(fragment string) bool {
	return strings.HasPrefix(fragment, "signature=") || strings.HasPrefix(fragment, "hmac=")
}

// ProvidedSignature returns the first signature= value, else the first hmac= value.
func ProvidedSignature(rawQuery string) (string, bool) {
	fragments := strings.Split(rawQuery, "&")
	for _, key := range []string{"signature=", "hmac="} {
		for _, fragment := range fragments {
			if strings.HasPrefix(fragment, key) {
				return fragment[len(key):], true
			}
		}
	}
	return "", false
}

// SignProxyMessage returns the lowercase hex HMAC-SHA256 of message.
func SignProxyMessage(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyProxySignature reports whether rawQuery carries a valid app proxy
// signature for rawPath. It fails closed on a missing signature or secret.
func VerifyProxySignature(rawPath, rawQuery, secret string, opts ProxyOptions) bool {
	ok, _ := verifyProxy(rawPath, rawQuery, secret, opts)
	return ok
}

type proxyCheck struct {
	message  string
	computed string
	provided string
}

func verifyProxy(rawPath, rawQuery, secret string, opts ProxyOptions) (ok bool, check proxyCheck) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if secret == "" {
		return false, check
	}
	provided, found := ProvidedSignature(rawQuery)
	if !found {
		return false, check
	}
	check.provided = provided

	check.message = BuildCanonicalMessage(rawPath, rawQuery, opts.MountPrefix, opts.FallbackPathPrefix)
	check.computed = SignProxyMessage(secret, check.message)

	if len(provided) != len(check.computed) {
		return false, check
	}
	return hmac.Equal([]byte(check.computed), []byte(provided)), check
}

// ProxyVerifier binds the signing secret and path options. Debug is the
// operator diagnostic sink and must stay nil outside of local debugging.
type ProxyVerifier struct {
	Secret  string
	Options ProxyOptions
	Debug   *slog.Logger
}

func (v *ProxyVerifier) Verify(rawPath, rawQuery string) bool {
	ok, check := verifyProxy(rawPath, rawQuery, v.Secret, v.Options)
	if v.Debug != nil {
		v.Debug.Debug("app proxy signature check",
			"ok", ok,
			"secret", secretPreview(v.Secret),
			"message", check.message,
			"computed", digestPreview(check.computed),
			"provided", digestPreview(check.provided),
		)
	}
	return ok
}

func secretPreview(secret string) string {
	if len(secret) <= 4 {
		return fmt.Sprintf("(%d chars)", len(secret))
	}
	return fmt.Sprintf("%s… (%d chars)", secret[:4], len(secret))
}

func digestPreview(d string) string {
	if len(d) <= 12 {
		return d
	}
	return d[:12] + "…"
}
