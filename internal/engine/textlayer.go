package engine

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/rsc/pdf"
)

// PDFReader — чтение текстового слоя PDF постранично.
type PDFReader interface {
	// PageTexts возвращает текст каждой страницы в порядке следования.
	// Пустая строка — у страницы нет текстового слоя.
	PageTexts(path string) ([]string, error)
	// PageCount возвращает количество страниц.
	PageCount(path string) (int, error)
}

// TextLayerReader — PDFReader на основе rsc/pdf.
type TextLayerReader struct{}

// NewTextLayerReader создаёт TextLayerReader.
func NewTextLayerReader() *TextLayerReader {
	return &TextLayerReader{}
}

// PageCount возвращает количество страниц PDF.
func (r *TextLayerReader) PageCount(path string) (n int, err error) {
	err = withReader(path, func(reader *pdf.Reader) error {
		n = reader.NumPage()
		return nil
	})
	return n, err
}

// PageTexts извлекает текст всех страниц. Символы группируются в строки
// по вертикальной координате, строки выводятся сверху вниз.
func (r *TextLayerReader) PageTexts(path string) (texts []string, err error) {
	err = withReader(path, func(reader *pdf.Reader) error {
		n := reader.NumPage()
		texts = make([]string, n)
		for i := 1; i <= n; i++ {
			texts[i-1] = pageText(reader.Page(i))
		}
		return nil
	})
	return texts, err
}

// withReader открывает PDF и вызывает fn. rsc/pdf паникует на повреждённых
// файлах, паника превращается в ошибку.
func withReader(path string, fn func(*pdf.Reader) error) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ошибка получения информации о PDF: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("повреждённый PDF: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("ошибка чтения PDF: %w", err)
	}
	return fn(reader)
}

// pageText собирает текст страницы. Паника на отдельной странице даёт пустой текст.
func pageText(page pdf.Page) (text string) {
	if page.V.IsNull() {
		return ""
	}
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	glyphs := page.Content().Text
	if len(glyphs) == 0 {
		return ""
	}

	type line struct {
		y      float64
		glyphs []pdf.Text
	}
	var lines []*line
	for _, g := range glyphs {
		tolerance := math.Max(g.FontSize*0.5, 1)
		var target *line
		for _, l := range lines {
			if math.Abs(l.y-g.Y) <= tolerance {
				target = l
				break
			}
		}
		if target == nil {
			target = &line{y: g.Y}
			lines = append(lines, target)
		}
		target.glyphs = append(target.glyphs, g)
	}

	// Сверху вниз: в PDF ось Y направлена вверх
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })

		var b strings.Builder
		for i, g := range l.glyphs {
			if i > 0 {
				prev := l.glyphs[i-1]
				gap := g.X - (prev.X + prev.W)
				if gap > g.FontSize*0.2 && !strings.HasSuffix(b.String(), " ") && g.S != " " {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
