package notification

import "strings"

// DefaultCountryCode 本地号码补全的国家码
const DefaultCountryCode = "92"

// FormatPhone 规范化为 E.164：去掉非数字，0 开头或 10 位本地号补国家码
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, DefaultCountryCode):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + DefaultCountryCode + digits[1:]
	case len(digits) == 10:
		return "+" + DefaultCountryCode + digits
	default:
		return "+" + digits
	}
}
