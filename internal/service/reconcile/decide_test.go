package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	testCases := []struct {
		name       string
		hasLocal   bool
		hasToken   bool
		urlChanged bool
		opts       Options
		expected   Action
	}{
		{name: "no local", expected: ActionFetch},
		{name: "no local with token and recheck", hasToken: true, opts: Options{Recheck: true}, expected: ActionFetch},
		{name: "local without token", hasLocal: true, expected: ActionSeed},
		{name: "local without token and recheck", hasLocal: true, opts: Options{Recheck: true}, expected: ActionSeed},
		{name: "local with token", hasLocal: true, hasToken: true, expected: ActionSkip},
		{name: "local with token and recheck", hasLocal: true, hasToken: true, opts: Options{Recheck: true}, expected: ActionConditional},
		{name: "force", hasLocal: true, hasToken: true, opts: Options{Force: true}, expected: ActionFetch},
		{name: "full scan", hasLocal: true, hasToken: true, opts: Options{FullScan: true}, expected: ActionFetch},
		{name: "url changed", hasLocal: true, hasToken: true, urlChanged: true, expected: ActionFetch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Decide(tc.hasLocal, tc.hasToken, tc.urlChanged, tc.opts))
		})
	}
}

func TestIsDefaultImage(t *testing.T) {
	require.True(t, isDefaultImage("https://x/tag/1/image?t=123&default=true"))
	require.True(t, isDefaultImage("https://x/tag/1/image?default=true"))
	require.False(t, isDefaultImage("https://x/tag/1/image?t=123"))
	require.False(t, isDefaultImage("https://x/tag/1/image?default=false"))
}

func TestHasAnyPrefix(t *testing.T) {
	require.True(t, hasAnyPrefix("[sys] Admin", []string{"_", "[sys]"}))
	require.False(t, hasAnyPrefix("Admin", []string{"_", "[sys]"}))
	require.False(t, hasAnyPrefix("Admin", []string{""}))
}
