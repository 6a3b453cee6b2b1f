// Package util contiene helpers chicos sin dependencias.
package util

import "strings"

// MaskSecret deja visibles el primer y último carácter. Vacío queda vacío.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "***"
	default:
		return s[:1] + "…" + s[len(s)-1:]
	}
}
