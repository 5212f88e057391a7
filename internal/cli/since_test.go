package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-05-01T03:00:00Z", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), got)

	got, err = parseSince("2 days ago", now)
	require.NoError(t, err)
	require.True(t, got.Before(now))
	require.Equal(t, 8, got.Day())

	_, err = parseSince("gibberish", now)
	require.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"serve", "run", "validate"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}

	run, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"recheck", "force", "full", "since"} {
		require.NotNil(t, run.Flags().Lookup(flag))
	}
	require.NotNil(t, cmd.PersistentFlags().ShorthandLookup("c"))
}
