package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanFileName(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "spaces", input: "Foo Bar", expected: "Foo_Bar"},
		{name: "trim", input: "  Foo Bar \t", expected: "Foo_Bar"},
		{name: "periods removed", input: "Mr. Robot v1.2", expected: "Mr_Robot_v12"},
		{name: "colon", input: "Part: One", expected: "Part-_One"},
		{name: "separators", input: `a/b\c d`, expected: "a_b_c_d"},
		{name: "byte escape is code point", input: "Caf%E9", expected: "Café"},
		{name: "wide escape", input: "%u00C9cole", expected: "École"},
		{name: "invalid escape kept", input: "100%zz", expected: "100%zz"},
		{name: "decoded separator replaced", input: "AC%2FDC", expected: "AC_DC"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, CleanFileName(tc.input))
		})
	}
}

func TestCleanFileNameDeterministic(t *testing.T) {
	input := " Weird: name/with %E9 and %u0041 "
	first := CleanFileName(input)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, CleanFileName(input))
	}
}

func TestChecksum(t *testing.T) {
	sum, err := Checksum(strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)
}
