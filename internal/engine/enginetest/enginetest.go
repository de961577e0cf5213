// Пакет enginetest — вспомогательные средства для тестов движков:
// генерация минимальных PDF и фиктивный Runner.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// BuildPDF собирает PDF с одной страницей на элемент pages. Непустой элемент
// становится текстовым слоем страницы (Helvetica, WinAnsiEncoding), пустой —
// страницей без текста.
func BuildPDF(pages ...string) []byte {
	n := len(pages)
	// Объекты: 1 — каталог, 2 — дерево страниц, 3 — шрифт,
	// далее по паре (страница, содержимое) на каждую страницу.
	objects := make([]string, 3+2*n)

	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n)
	objects[2] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	for i, text := range pages {
		pageNum := 4 + 2*i
		objects[pageNum-1] = fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			pageNum+1)

		content := "q Q"
		if text != "" {
			var b strings.Builder
			b.WriteString("BT /F1 12 Tf 72 712 Td 14 TL")
			for j, line := range strings.Split(text, "\n") {
				if j > 0 {
					b.WriteString(" T*")
				}
				fmt.Fprintf(&b, " (%s) Tj", escapePDFString(line))
			}
			b.WriteString(" ET")
			content = b.String()
		}
		objects[pageNum] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content)+1, content)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// WritePDF записывает BuildPDF(pages...) во временную директорию теста.
func WritePDF(t testing.TB, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(path, BuildPDF(pages...), 0o640); err != nil {
		t.Fatalf("ошибка записи PDF: %v", err)
	}
	return path
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Call — зафиксированный вызов FakeRunner.
type Call struct {
	Name string
	Args []string
}

// FakeRunner — Runner для тестов. Fn вызывается вместо запуска процесса;
// отсутствующие в Installed инструменты дают EngineUnavailable.
type FakeRunner struct {
	// Installed — доступные инструменты; nil означает «все доступны»
	Installed map[string]bool
	// Fn — поведение инструмента
	Fn func(name string, args []string) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

// Available проверяет, что инструмент считается установленным.
func (f *FakeRunner) Available(name string) bool {
	return f.Installed == nil || f.Installed[name]
}

// Run фиксирует вызов и выполняет Fn.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()

	if !f.Available(name) {
		return nil, model.NewError(model.KindEngineUnavailable, nil, "инструмент %s не найден", name)
	}
	if f.Fn == nil {
		return nil, nil
	}
	return f.Fn(name, args)
}

// Calls возвращает копию списка вызовов.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo возвращает количество вызовов инструмента name.
func (f *FakeRunner) CallsTo(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}
