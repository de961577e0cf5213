package convert

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// FormatText нормализует пробелы и делает заглавной первую букву каждого
// предложения. Абзацы (разделённые пустой строкой) сохраняются и
// соединяются через "\n\n". Повторное применение не меняет результат.
//
//	"hello   world.  this is   a test.\n\n\nsecond para."
//	→ "Hello world. This is a test.\n\nSecond para."
func FormatText(text string) string {
	var paragraphs []string
	for _, p := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		p = strings.TrimSpace(whitespaceRun.ReplaceAllString(p, " "))
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, capitalizeSentences(p))
	}
	return strings.Join(paragraphs, "\n\n")
}

// capitalizeSentences делит абзац по ". " и поднимает регистр первой буквы
// каждого предложения. Остальные символы не меняются.
func capitalizeSentences(p string) string {
	sentences := strings.Split(p, ". ")
	out := sentences[:0]
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, upperFirst(s))
		}
	}
	return strings.Join(out, ". ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
