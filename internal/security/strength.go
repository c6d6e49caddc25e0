package security

import "unicode"

type StrengthLevel string

const (
	StrengthWeak   StrengthLevel = "weak"
	StrengthMedium StrengthLevel = "medium"
	StrengthStrong StrengthLevel = "strong"
)

// StrengthReport is the per-criterion breakdown of a password's quality.
type StrengthReport struct {
	Length          bool          `json:"length"`
	HasUpperCase    bool          `json:"hasUpperCase"`
	HasLowerCase    bool          `json:"hasLowerCase"`
	HasNumbers      bool          `json:"hasNumbers"`
	HasSpecialChars bool          `json:"hasSpecialChars"`
	Score           int           `json:"score"`
	Level           StrengthLevel `json:"level"`
}

// CheckPasswordStrength scores a password: 2 points for length >= 8, 1 each
// for upper, lower and digit, 2 for a symbol, 1 bonus for length >= 12.
// Score >= 6 is strong, >= 4 medium, anything below weak.
func CheckPasswordStrength(password string) StrengthReport {
	report := StrengthReport{
		Length: len(password) >= 8,
		Level:  StrengthWeak,
	}

	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			report.HasUpperCase = true
		case unicode.IsLower(ch):
			report.HasLowerCase = true
		case unicode.IsDigit(ch):
			report.HasNumbers = true
		case isSpecialChar(ch):
			report.HasSpecialChars = true
		}
	}

	if report.Length {
		report.Score += 2
	}
	if report.HasUpperCase {
		report.Score++
	}
	if report.HasLowerCase {
		report.Score++
	}
	if report.HasNumbers {
		report.Score++
	}
	if report.HasSpecialChars {
		report.Score += 2
	}
	if len(password) >= 12 {
		report.Score++
	}

	switch {
	case report.Score >= 6:
		report.Level = StrengthStrong
	case report.Score >= 4:
		report.Level = StrengthMedium
	}

	return report
}

func isSpecialChar(ch rune) bool {
	switch ch {
	case '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', ',', '.', '?', '"', ':', '{', '}', '|', '<', '>':
		return true
	}
	return false
}
