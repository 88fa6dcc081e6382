package payments

import (
	"strconv"
	"time"
)

// Card adalah input mentah dari klien. Jangan pernah dipersist atau di-log;
// satu-satunya tujuan hidupnya adalah tokenisasi di gateway.
type Card struct {
	Number   string
	CVC      string
	ExpMonth string // "01".."12"
	ExpYear  string // dua digit, e.g. "28"
	Holder   string
}

type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

const (
	BrandVisa       = "VISA"
	BrandMastercard = "MASTERCARD"
	BrandUnknown    = "UNKNOWN"
)

// ValidateCard: fungsi murni, tanpa framework, tanpa I/O.
// Semua aturan dicek dan seluruh kegagalan dikembalikan sekaligus.
func ValidateCard(c Card) []FieldError {
	var errs []FieldError

	if !allDigits(c.Number) || len(c.Number) < 13 || len(c.Number) > 19 {
		errs = append(errs, FieldError{Field: "number", Msg: "card number must be 13-19 digits"})
	} else if !luhnOK(c.Number) {
		errs = append(errs, FieldError{Field: "number", Msg: "card number failed checksum"})
	} else if DetectBrand(c.Number) == BrandUnknown {
		errs = append(errs, FieldError{Field: "number", Msg: "unsupported card brand"})
	}

	if !allDigits(c.CVC) || len(c.CVC) != 3 {
		errs = append(errs, FieldError{Field: "cvc", Msg: "cvc must be 3 digits"})
	}

	if ok, msg := expiryOK(c.ExpMonth, c.ExpYear, time.Now()); !ok {
		errs = append(errs, FieldError{Field: "expiry", Msg: msg})
	}

	if c.Holder == "" {
		errs = append(errs, FieldError{Field: "card_holder", Msg: "card holder is required"})
	}

	return errs
}

// DetectBrand: visa mulai 4; mastercard 51-55 atau range 2221-2720.
func DetectBrand(number string) string {
	if number == "" {
		return BrandUnknown
	}
	if number[0] == '4' {
		return BrandVisa
	}
	if len(number) >= 4 {
		two, _ := strconv.Atoi(number[:2])
		four, _ := strconv.Atoi(number[:4])
		if (two >= 51 && two <= 55) || (four >= 2221 && four <= 2720) {
			return BrandMastercard
		}
	}
	return BrandUnknown
}

func luhnOK(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func expiryOK(month, year string, now time.Time) (bool, string) {
	if len(month) != 2 || !allDigits(month) {
		return false, "expiry month must be two digits"
	}
	if len(year) != 2 || !allDigits(year) {
		return false, "expiry year must be two digits"
	}
	m, _ := strconv.Atoi(month)
	if m < 1 || m > 12 {
		return false, "expiry month out of range"
	}
	y, _ := strconv.Atoi(year)
	y += 2000
	// kartu valid sampai akhir bulan expiry
	expiresAt := time.Date(y, time.Month(m)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expiresAt) {
		return false, "card is expired"
	}
	return true, ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
