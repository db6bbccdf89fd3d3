package transform

import (
	"regexp"
	"strings"
)

// The jurisdiction pattern accepts any 2-3 letter uppercase run after the
// first character, so capitalised street tokens can match before the state.
var (
	stateRe    = regexp.MustCompile(`.+?([A-Z]{2,3}|Victoria|Vic|Western Australia)`)
	postcodeRe = regexp.MustCompile(`.* (\d{4})`)
	vicRe      = regexp.MustCompile(`Vic(?:toria)?`)
)

// ExtractState returns the normalised jurisdiction found in address, or "".
func ExtractState(address string) string {
	m := stateRe.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return NormalizeState(m[1])
}

func NormalizeState(s string) string {
	s = vicRe.ReplaceAllString(s, "VIC")
	return strings.ReplaceAll(s, "Western Australia", "WA")
}

// ExtractPostcode returns the last space-prefixed 4 digit run in address, or "".
func ExtractPostcode(address string) string {
	m := postcodeRe.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return m[1]
}
