package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// ScratchProvider выдаёт уникальные рабочие директории для вызовов движков.
type ScratchProvider interface {
	ScratchDir() (string, error)
}

// moveFile переносит файл, при переносе между файловыми системами копирует.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("ошибка переноса %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("ошибка копирования в %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("ошибка закрытия %s: %w", dst, err)
	}
	return os.Remove(src)
}
