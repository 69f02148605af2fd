package bayeux

import "strings"

// channelKind classifies a channel name per spec section 3.
type channelKind int

const (
	kindBroadcast channelKind = iota
	kindMeta
	kindService
)

// validChannelName reports whether name is a well-formed absolute Bayeux
// channel path: never empty, never bare "/", and containing no empty
// segments.
func validChannelName(name string) bool {
	if name == "" || name == "/" || name[0] != '/' {
		return false
	}
	segments := strings.Split(name[1:], "/")
	for _, s := range segments {
		if s == "" {
			return false
		}
	}
	return true
}

// classify returns the channel kind for a validated name.
func classify(name string) channelKind {
	switch {
	case strings.HasPrefix(name, "/meta/"):
		return kindMeta
	case strings.HasPrefix(name, "/service/"):
		return kindService
	default:
		return kindBroadcast
	}
}

// isWildcard reports whether name is itself a wildcard channel ("/**" or
// ending in "/*" or "/**"), which never has wildcard parents of its own.
func isWildcard(name string) bool {
	return strings.HasSuffix(name, "/*") || strings.HasSuffix(name, "/**")
}

// wildcardAncestors enumerates the wildcard parent channels of name in
// ancestor-first order, per spec section 4.2:
//
//	/a/b/c -> /**, /a/**, /a/b/**, /a/b/*
//
// Wildcard channels themselves (ending in "*" or "**") have no ancestors.
func wildcardAncestors(name string) []string {
	if isWildcard(name) {
		return nil
	}
	segments := strings.Split(name[1:], "/")
	ancestors := make([]string, 0, len(segments))
	ancestors = append(ancestors, "/**")
	prefix := ""
	for i := 0; i < len(segments)-1; i++ {
		prefix += "/" + segments[i]
		ancestors = append(ancestors, prefix+"/**")
	}
	if len(segments) > 1 {
		ancestors = append(ancestors, prefix+"/*")
	} else {
		ancestors = append(ancestors, "/*")
	}
	return ancestors
}

// notificationChain returns the full ordered set of channel names that must
// be walked (ancestor-first) to notify listeners of a publish on name,
// ending with name itself.
func notificationChain(name string) []string {
	chain := wildcardAncestors(name)
	return append(chain, name)
}
