// Пакет packager — упаковка нескольких результатов конвертации в один zip-архив.
package packager

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/docgate/internal/domain/model"
	"github.com/bigkaa/docgate/internal/storage/filestore"
)

// ArchivePrefix — префикс имени архива в области converted.
const ArchivePrefix = "converted_images"

// Packager собирает архивы в области converted.
type Packager struct {
	converted *filestore.FileStore
}

// New создаёт Packager.
func New(converted *filestore.FileStore) *Packager {
	return &Packager{converted: converted}
}

// Package упаковывает paths в новый архив и возвращает его путь. Записи идут
// в порядке paths под базовыми именами; совпадающие имена получают суффикс
// _2, _3 и т.д. При ошибке частичный архив удаляется.
func (p *Packager) Package(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", model.NewError(model.KindPackagingFailed, nil, "нет файлов для упаковки")
	}

	archivePath := p.converted.Reserve(ArchivePrefix, "zip")
	f, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", model.NewError(model.KindPackagingFailed, err, "ошибка создания архива")
	}

	fail := func(err error, format string, args ...any) (string, error) {
		f.Close()
		os.Remove(archivePath)
		return "", model.NewError(model.KindPackagingFailed, err, format, args...)
	}

	zw := zip.NewWriter(f)
	names := EntryNames(paths)
	for i, path := range paths {
		if err := addEntry(zw, path, names[i]); err != nil {
			return fail(err, "ошибка упаковки %s", filepath.Base(path))
		}
	}
	if err := zw.Close(); err != nil {
		return fail(err, "ошибка завершения архива")
	}
	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return "", model.NewError(model.KindPackagingFailed, err, "ошибка закрытия архива")
	}
	return archivePath, nil
}

// EntryNames возвращает имена записей архива: базовое имя файла, при
// совпадении — {name}_{N}{ext}, начиная с N=2.
func EntryNames(paths []string) []string {
	used := make(map[string]bool, len(paths))
	names := make([]string, len(paths))
	for i, path := range paths {
		name := filepath.Base(path)
		if used[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func addEntry(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
