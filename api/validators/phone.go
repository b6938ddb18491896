package validators

import (
	"strings"

	pkgerrors "github.com/ptfoundation/pandham-backend/pkg/errors"
)

// NormalizePhone canonicalizes a Thai mobile number to its local 10-digit
// form. Accepts spaces and dashes, and the international 66 prefix.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := digits.String()

	if strings.HasPrefix(phone, "66") && len(phone) == 11 {
		phone = "0" + phone[2:]
	}

	if len(phone) != 10 || !strings.HasPrefix(phone, "0") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number must be a 10-digit Thai mobile number")
	}
	return phone, nil
}
