package bayeux

import "time"

// SameSite mirrors http.SameSite without forcing callers to import net/http
// just to configure the browser cookie.
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

// Options configures a Broker/HTTPTransport pair. All fields are optional;
// DefaultOptions supplies the values from spec section 6.
type Options struct {
	// Timeout bounds how long a /meta/connect may be held.
	Timeout time.Duration
	// Interval is the minimum pause the server advises between client
	// connects.
	Interval time.Duration
	// MaxInterval is the extra grace period added before the sweeper
	// considers a session expired.
	MaxInterval time.Duration
	// SweepPeriod is the sweeper tick interval.
	SweepPeriod time.Duration
	// LogLevel is carried for the caller's use; this package does not read
	// it. Log verbosity is whatever internal/logger was initialized with.
	LogLevel string

	// BrowserCookieName names the cookie identifying a browser.
	BrowserCookieName     string
	BrowserCookieHTTPOnly bool
	BrowserCookieSecure   bool
	BrowserCookieSameSite SameSite

	// MaxSessionsPerBrowser caps concurrent suspended connects per browser.
	// -1 means unlimited, 0 forbids holding entirely.
	MaxSessionsPerBrowser int
	// MultiSessionInterval is the retry hint given when the browser cap is
	// exceeded.
	MultiSessionInterval time.Duration

	// DuplicateMetaConnectHTTPResponseCode is the HTTP status used to
	// complete a preempted (duplicate) held connect.
	DuplicateMetaConnectHTTPResponseCode int

	// Overrides holds transport-namespaced overrides, e.g.
	// "long-polling.json.timeout" -> 5s. See Overrides.resolve.
	Overrides Overrides
}

// DefaultOptions holds the spec section 6 defaults.
var DefaultOptions = Options{
	Timeout:                              30000 * time.Millisecond,
	Interval:                             0,
	MaxInterval:                          10000 * time.Millisecond,
	SweepPeriod:                          997 * time.Millisecond,
	LogLevel:                             "info",
	BrowserCookieName:                    "BAYEUX_BROWSER",
	BrowserCookieHTTPOnly:                true,
	BrowserCookieSecure:                  false,
	BrowserCookieSameSite:                SameSiteDefault,
	MaxSessionsPerBrowser:                1,
	MultiSessionInterval:                 2000 * time.Millisecond,
	DuplicateMetaConnectHTTPResponseCode: 500,
}

// withDefaults fills any zero-valued duration or string field of o from
// DefaultOptions. Booleans, MaxSessionsPerBrowser (where 0 and -1 are
// meaningful) and Overrides can't be distinguished from "unset" this way and
// are copied from o as-is, so callers should start from DefaultOptions and
// mutate it before passing it to NewBroker.
func (o Options) withDefaults() Options {
	d := DefaultOptions
	if o.Timeout > 0 {
		d.Timeout = o.Timeout
	}
	if o.Interval > 0 {
		d.Interval = o.Interval
	}
	if o.MaxInterval > 0 {
		d.MaxInterval = o.MaxInterval
	}
	if o.SweepPeriod > 0 {
		d.SweepPeriod = o.SweepPeriod
	}
	if o.LogLevel != "" {
		d.LogLevel = o.LogLevel
	}
	if o.BrowserCookieName != "" {
		d.BrowserCookieName = o.BrowserCookieName
	}
	d.BrowserCookieHTTPOnly = o.BrowserCookieHTTPOnly
	d.BrowserCookieSecure = o.BrowserCookieSecure
	d.BrowserCookieSameSite = o.BrowserCookieSameSite
	d.MaxSessionsPerBrowser = o.MaxSessionsPerBrowser
	if o.MultiSessionInterval > 0 {
		d.MultiSessionInterval = o.MultiSessionInterval
	}
	if o.DuplicateMetaConnectHTTPResponseCode != 0 {
		d.DuplicateMetaConnectHTTPResponseCode = o.DuplicateMetaConnectHTTPResponseCode
	}
	d.Overrides = o.Overrides
	return d
}

// optionNamespaces is the fixed general-to-specific prefix list transport
// option lookups walk, replacing the source's prototype-chain based option
// resolution (spec section 9, "Dynamic dispatch / mixin composition").
// A concrete transport (only "long-polling" exists here) can shadow a
// broker-wide default by setting the same key under its own namespace.
var optionNamespaces = []string{"", "long-polling.json"}

// Overrides holds transport-scoped option values keyed
// "long-polling.json.<name>", per spec section 6. A general value with no
// namespace prefix (bare "<name>") is consulted if no namespaced value
// exists.
type Overrides map[string]time.Duration

func (ov Overrides) resolve(name string, fallback time.Duration) time.Duration {
	for i := len(optionNamespaces) - 1; i >= 0; i-- {
		key := name
		if ns := optionNamespaces[i]; ns != "" {
			key = ns + "." + name
		}
		if v, ok := ov[key]; ok {
			return v
		}
	}
	return fallback
}
