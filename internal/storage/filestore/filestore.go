// Пакет filestore — операции с физическими файлами в областях хранения.
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету, генерацию
// уникальных имён, резервирование путей для движков, чтение и удаление.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// maxNameRunes — ограничение длины очищенного исходного имени.
const maxNameRunes = 50

// ErrInvalidPath — относительный путь содержит разделители или переходы вверх.
var ErrInvalidPath = errors.New("недопустимый путь в области хранения")

// ErrNotFound — файл отсутствует в области хранения.
var ErrNotFound = errors.New("файл не найден")

// FileStore — одна область хранения (директория) с плоским набором файлов.
type FileStore struct {
	// name — имя области для логов и метрик (uploads, converted, temp)
	name string
	// dir — директория области
	dir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — имя файла внутри области
	StoragePath string
	// FullPath — путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// Entry — запись верхнего уровня области хранения.
type Entry struct {
	Name    string
	ModTime time.Time
	IsDir   bool
}

// New создаёт новый FileStore. Создаёт директорию, если она не существует.
func New(name, dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию области %s (%s): %w", name, dir, err)
	}
	return &FileStore{name: name, dir: dir}, nil
}

// Name возвращает имя области.
func (fs *FileStore) Name() string {
	return fs.name
}

// Dir возвращает путь к директории области.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// SaveFile записывает данные из reader в область с подсчётом SHA-256 на лету.
// Формат имени: {name}_{timestamp}_{uuid}.{ext}
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, originalFilename string) (*SaveResult, error) {
	storageName := GenerateStorageName(originalFilename)
	fullPath := filepath.Join(fs.dir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storageName,
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ReadFile открывает файл области для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) ReadFile(storagePath string) (*os.File, error) {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	return f, nil
}

// Retrieve возвращает содержимое файла области целиком.
func (fs *FileStore) Retrieve(storagePath string) ([]byte, error) {
	f, err := fs.ReadFile(storagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", storagePath, err)
	}
	return data, nil
}

// FullPath возвращает путь к файлу на диске.
func (fs *FileStore) FullPath(storagePath string) string {
	return filepath.Join(fs.dir, storagePath)
}

// DeleteFile удаляет файл из области. Возвращает nil, если файл уже не существует.
func (fs *FileStore) DeleteFile(storagePath string) error {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// FileExists проверяет существование файла в области.
func (fs *FileStore) FileExists(storagePath string) bool {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Reserve возвращает свежий уникальный путь в области для результата движка.
// Файл не создаётся.
func (fs *FileStore) Reserve(baseName, ext string) string {
	name := sanitize(baseName) + "_" + shortID()
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return filepath.Join(fs.dir, name)
}

// ScratchDir создаёт уникальную рабочую директорию внутри области.
// Директорию удаляет вызывающий код (или очистка по сроку хранения).
func (fs *FileStore) ScratchDir() (string, error) {
	dir := filepath.Join(fs.dir, "work_"+uuid.NewString())
	if err := os.Mkdir(dir, 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания рабочей директории: %w", err)
	}
	return dir, nil
}

// Entries возвращает записи верхнего уровня области с временем модификации.
// Записи, исчезнувшие во время обхода, пропускаются.
func (fs *FileStore) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения области %s: %w", fs.name, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			ModTime: info.ModTime(),
			IsDir:   de.IsDir(),
		})
	}
	return entries, nil
}

// RemoveEntry удаляет запись верхнего уровня (файл или директорию целиком).
// Отсутствующая запись не считается ошибкой.
func (fs *FileStore) RemoveEntry(name string) error {
	fullPath, err := fs.resolve(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", name, err)
	}
	return nil
}

// resolve проверяет, что storagePath — имя внутри области, и возвращает полный путь.
func (fs *FileStore) resolve(storagePath string) (string, error) {
	if storagePath == "" || storagePath == "." || storagePath == ".." ||
		strings.ContainsAny(storagePath, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	return filepath.Join(fs.dir, storagePath), nil
}

// GenerateStorageName генерирует уникальное имя файла для хранения.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: report_20260221150405_0f8e5b2c-6a3d-4d2b-9a57-1d2c3b4a5e6f.pdf
func GenerateStorageName(originalFilename string) string {
	base := BaseName(originalFilename)
	ext := strings.ToLower(filepath.Ext(base))
	if ext != "" && sanitizeExt(ext) != ext {
		ext = ""
	}
	name := sanitize(strings.TrimSuffix(base, filepath.Ext(base)))

	ts := time.Now().UTC().Format("20060102150405")
	return fmt.Sprintf("%s_%s_%s%s", name, ts, uuid.NewString(), ext)
}

// BaseName отбрасывает компоненты пути клиента (в том числе Windows-разделители).
func BaseName(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

// shortID возвращает короткий уникальный суффикс для имён результатов.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	n := 0
	for _, r := range s {
		if n >= maxNameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			result.WriteRune(r)
			n++
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt оставляет в расширении только ASCII буквы и цифры.
func sanitizeExt(ext string) string {
	var result strings.Builder
	result.WriteByte('.')
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// OriginalStem восстанавливает очищенное исходное имя (без расширения) из имени,
// созданного GenerateStorageName. Для прочих имён возвращает имя без расширения.
func OriginalStem(storageName string) string {
	name := strings.TrimSuffix(storageName, filepath.Ext(storageName))
	// {name}_{14 цифр}_{uuid из 36 символов}
	const suffixLen = 1 + 14 + 1 + 36
	if len(name) <= suffixLen {
		return name
	}
	suffix := name[len(name)-suffixLen:]
	if suffix[0] != '_' || suffix[15] != '_' {
		return name
	}
	for _, c := range suffix[1:15] {
		if c < '0' || c > '9' {
			return name
		}
	}
	if _, err := uuid.Parse(suffix[16:]); err != nil {
		return name
	}
	return name[:len(name)-suffixLen]
}
