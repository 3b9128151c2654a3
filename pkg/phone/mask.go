// Package phone holds helpers for phone-number-like account identifiers.
package phone

// Mask masks a phone number for secure logging
// Keeps first 3 and last 4 characters visible, masks the rest
//
// Examples:
//   - "+1234567890" -> "+12****7890"
//   - "+12345" -> "****"
func Mask(phone string) string {
	if len(phone) <= 6 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-4:]
}

// maxAccountIDLength bounds identifiers used in file names and keys
const maxAccountIDLength = 64

// IsValidAccountID reports whether id can be used as an account key.
// Account ids end up in file names, so only a conservative charset is allowed.
func IsValidAccountID(id string) bool {
	if id == "" || len(id) > maxAccountIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '+' || c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
