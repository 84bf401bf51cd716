package identity

import (
	"fmt"
	"strings"
)

// freeMailDomains is the deny-list of consumer mail providers. Registration
// requires a business address; domain matching is case-insensitive.
var freeMailDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
	"yahoo.com":      {},
	"ymail.com":      {},
	"hotmail.com":    {},
	"outlook.com":    {},
	"live.com":       {},
	"msn.com":        {},
	"aol.com":        {},
	"icloud.com":     {},
	"me.com":         {},
	"mail.com":       {},
	"gmx.com":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"zoho.com":       {},
	"yandex.com":     {},
	"yandex.ru":      {},
	"rediffmail.com": {},
}

// NormalizeEmail lower-cases and trims an address. Every store lookup and
// unique index operates on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateBusinessEmail rejects addresses whose domain is on the consumer
// mail deny-list. The address is expected to be syntactically valid already.
func ValidateBusinessEmail(email string) error {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return fmt.Errorf("%w: malformed email address", ErrValidation)
	}
	domain := email[at+1:]
	if _, denied := freeMailDomains[domain]; denied {
		return fmt.Errorf("%w: %s is not a business email domain", ErrValidation, domain)
	}
	return nil
}
