// Package cookie formats Set-Cookie header values for auth tokens.
package cookie

import (
	"strconv"
	"strings"
)

type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

const DefaultPath = "/"

// Names of the cookies carrying the session tokens.
const (
	AccessTokenName  = "auth_token"
	RefreshTokenName = "refresh_token"
)

// Options controls the attributes written after name=value. A zero Path
// means "/", an empty SameSite means lax and a nil MaxAge leaves the
// attribute out (session cookie).
type Options struct {
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite SameSite
	MaxAge   *int
}

// MaxAge returns a pointer suitable for Options.MaxAge.
func MaxAge(seconds int) *int {
	return &seconds
}

// Encode renders name=value followed by the attributes in opts, in the order
// Path, HttpOnly, Secure, SameSite, Max-Age.
func Encode(name, value string, opts Options) string {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	sameSite := opts.SameSite
	if sameSite == "" {
		sameSite = SameSiteLax
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString("; Path=")
	b.WriteString(path)
	if opts.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if opts.Secure {
		b.WriteString("; Secure")
	}
	b.WriteString("; SameSite=")
	b.WriteString(string(sameSite))
	if opts.MaxAge != nil {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(*opts.MaxAge))
	}
	return b.String()
}

// Clear renders a cookie that tells the client to drop name immediately.
func Clear(name string, opts Options) string {
	opts.MaxAge = MaxAge(0)
	return Encode(name, "", opts)
}
