package utils

import "strings"

// FirstNonEmpty returns the first candidate that is not blank after trimming.
func FirstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

// EmailLocalPart returns the part of an address before the '@'.
func EmailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
