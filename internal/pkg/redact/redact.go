// redact маскирует персональные данные перед записью в лог.
package redact

import "strings"

// Email маскирует e-mail: первые две руны локальной части + "***", домен
// без изменений. Локальная часть из двух рун и короче скрывается целиком,
// строка без ровно одного '@' — полностью ("***").
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := []rune(s[:i]), s[i+1:]

	if len(local) <= 2 {
		return "***@" + domain
	}

	return string(local[:2]) + "***@" + domain
}

// Login маскирует логин входа: e-mail через Email, username как есть.
func Login(s string) string {
	if strings.Contains(s, "@") {
		return Email(s)
	}

	return s
}
