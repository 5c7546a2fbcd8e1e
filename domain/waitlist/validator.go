package waitlist

import "strings"

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Two addresses that normalize to the same string are the same waitlist
// membership, and the normalized form is what the unique index stores.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail is a pragmatic format gate, not an RFC 5322 parser. It accepts
// exactly one '@' with a non-empty local part and a domain that contains at
// least one dot, and rejects any whitespace. Deliverability is out of scope;
// the goal is to keep obvious garbage out of the list.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}

	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}

	domain := email[at+1:]
	if domain == "" {
		return false
	}

	dot := strings.Index(domain, ".")
	// The dot must separate non-empty labels.
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return true
}
