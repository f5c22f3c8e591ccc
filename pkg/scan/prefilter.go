package scan

import "strings"

// ShouldReject reports whether a value can be discarded before any pattern
// runs. Rejected values: shorter than 10 or longer than 1000 characters,
// purely numeric under 13 digits, or containing no digit at all.
//
// Email-shaped values ("@" and ".") and SSN-shaped values ("-" with length
// 9 or 11) are always evaluated regardless of the rules above. The no-digit
// rule is a deliberate approximation: it discards prose, including names,
// in exchange for skipping the regex set on the bulk of free-text columns.
func ShouldReject(value string) bool {
	n := len(value)

	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return false
	}
	if strings.Contains(value, "-") && (n == 9 || n == 11) {
		return false
	}

	if n < 10 || n > 1000 {
		return true
	}
	if n < 13 && allDigits(value) {
		return true
	}
	return !containsDigit(value)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func containsDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}
