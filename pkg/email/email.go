// Package email derives display data from addresses.
package email

import (
	"strings"
	"unicode"
)

// DeriveFullName builds a display name from the local part of an address:
// "ayse.kaya@corp.example" becomes "Ayse Kaya". Falls back to "User".
func DeriveFullName(address string) string {
	local := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		local = address[:at]
	}
	// drop plus-addressing tags
	if plus := strings.IndexByte(local, '+'); plus > 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return "User"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
