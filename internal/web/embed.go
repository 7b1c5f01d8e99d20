// Пакет web — встроенные статические ресурсы kardo-backend.
// Страница выбора языка встраивается в бинарник через //go:embed.
package web

import (
	"embed"
	"io/fs"
)

// content — встроенная файловая система со статическими страницами.
//
//go:embed language.html
var content embed.FS

// LanguagePage возвращает содержимое страницы выбора языка.
func LanguagePage() ([]byte, error) {
	return content.ReadFile("language.html")
}

// FS возвращает fs.FS для прямого доступа к встроенным файлам.
func FS() fs.FS {
	return content
}
