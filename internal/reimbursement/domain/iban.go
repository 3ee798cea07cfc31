package reimbursement

import "strings"

// IBANResult reports syntactic IBAN validation.
type IBANResult struct {
	Valid bool
	Err   string
}

// ValidateIBAN checks the shape and mod-97 checksum of a bank account
// identifier. Internal whitespace is stripped and letters uppercased before
// checking. French IBANs get a stricter length pre-check. The function is
// total: every failure path returns a descriptive error, never a panic.
func ValidateIBAN(raw string) IBANResult {
	if strings.TrimSpace(raw) == "" {
		return IBANResult{Err: "IBAN vide"}
	}
	iban := strings.ToUpper(strings.Join(strings.Fields(raw), ""))

	if len(iban) < 15 || len(iban) > 34 {
		return IBANResult{Err: "longueur d'IBAN invalide"}
	}
	if strings.HasPrefix(iban, "FR") && len(iban) != 27 {
		return IBANResult{Err: "un IBAN français comporte 27 caractères"}
	}
	for i := 0; i < len(iban); i++ {
		c := iban[i]
		switch {
		case i < 2:
			if c < 'A' || c > 'Z' {
				return IBANResult{Err: "code pays invalide"}
			}
		case i < 4:
			if c < '0' || c > '9' {
				return IBANResult{Err: "clé de contrôle invalide"}
			}
		default:
			if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
				return IBANResult{Err: "caractère invalide dans l'IBAN"}
			}
		}
	}

	// Move the first four characters to the end, expand letters to their
	// two-digit values and take the whole string mod 97, digit by digit so
	// the intermediate value never overflows.
	rearranged := iban[4:] + iban[:4]
	remainder := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		if c >= '0' && c <= '9' {
			remainder = (remainder*10 + int(c-'0')) % 97
		} else {
			remainder = (remainder*100 + int(c-'A') + 10) % 97
		}
	}
	if remainder != 1 {
		return IBANResult{Err: "clé de contrôle IBAN incorrecte"}
	}
	return IBANResult{Valid: true}
}
