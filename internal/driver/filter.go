package driver

import "path"

// Blacklist filters descriptors by destination. An entry matches either
// exactly or as a path glob ("github.com/acme/legacy-*"). Glob wildcards do
// not cross "/" boundaries, so "github.com/*" matches nothing: a destination
// always has at least host/owner/name.
type Blacklist struct {
	patterns []string
}

func NewBlacklist(patterns []string) *Blacklist {
	return &Blacklist{patterns: patterns}
}

// Matches reports whether dest is blacklisted. Malformed patterns never
// match; configuration loading rejects them up front.
func (b *Blacklist) Matches(dest string) bool {
	for _, p := range b.patterns {
		if p == dest {
			return true
		}
		if ok, err := path.Match(p, dest); err == nil && ok {
			return true
		}
	}
	return false
}
