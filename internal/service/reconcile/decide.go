package reconcile

import (
	"net/url"
	"strings"
)

type Action int

const (
	ActionFetch Action = iota
	ActionSeed
	ActionSkip
	ActionConditional
)

func (a Action) String() string {
	return [...]string{"fetch", "seed", "skip", "conditional"}[a]
}

const defaultImageMarker = "default=true"

// Decide picks what to do for one tag before any network call.
//
//	local  token  recheck  -> action
//	no     -      -        -> fetch
//	yes    no     -        -> seed
//	yes    yes    no       -> skip
//	yes    yes    yes      -> conditional
//
// Force and a changed image URL both behave as if no local file existed.
func Decide(hasLocal, hasToken, urlChanged bool, opts Options) Action {
	if !hasLocal || opts.Force || opts.FullScan || urlChanged {
		return ActionFetch
	}

	if !hasToken {
		return ActionSeed
	}

	if !opts.Recheck {
		return ActionSkip
	}

	return ActionConditional
}

// isDefaultImage reports whether the catalog serves a placeholder for the tag.
func isDefaultImage(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return strings.HasSuffix(imageURL, "&"+defaultImageMarker)
	}

	return u.Query().Get("default") == "true"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
