package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	wideEscapeRegexp = regexp.MustCompile(`%u(....)`)
	byteEscapeRegexp = regexp.MustCompile(`%(..)`)

	separatorReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_")
	pathReplacer      = strings.NewReplacer("/", "_", `\`, "_")
)

// CleanFileName maps a tag name to the base name used for its files.
//
// Escapes of the form %uXXXX and %XX are decoded to the code point with that
// value, so %E9 becomes U+00E9 rather than a UTF-8 continuation byte. Escapes
// that are not valid hex are kept as they are.
func CleanFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, ".", "")
	name = strings.ReplaceAll(name, ":", "-")
	name = separatorReplacer.Replace(name)
	name = decodeEscapes(wideEscapeRegexp, name)
	name = decodeEscapes(byteEscapeRegexp, name)

	// decoded escapes must not reintroduce path separators
	return pathReplacer.Replace(name)
}

func decodeEscapes(re *regexp.Regexp, s string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(re.FindStringSubmatch(m)[1], 16, 32)
		if err != nil {
			return m
		}

		return string(rune(code))
	})
}
