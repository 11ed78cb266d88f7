package sanitizer

import "strings"

// NormalizeEmail trims and lowercases an e-mail address. Addresses that do
// not split into exactly one local and one domain part are returned
// trimmed-and-lowered unchanged; format validation is the caller's job.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	return parts[0] + "@" + parts[1]
}

// EmailLocalPart returns the part of the address before the "@", lowercased,
// or "" when the address has no "@". Used to derive fallback handles.
func EmailLocalPart(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	local, _, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return local
}

// NormalizeUsername trims and lowercases a handle with Turkish casing rules.
func NormalizeUsername(username string) string {
	return TrimLower(username)
}
