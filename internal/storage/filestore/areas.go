package filestore

import (
	"fmt"
	"path/filepath"
)

// Имена областей хранения.
const (
	AreaUploads   = "uploads"
	AreaConverted = "converted"
	AreaTemp      = "temp"
)

// Areas — три области хранения шлюза.
type Areas struct {
	// Uploads — загруженные клиентом файлы
	Uploads *FileStore
	// Converted — результаты конвертации и архивы
	Converted *FileStore
	// Temp — промежуточные файлы и рабочие директории движков
	Temp *FileStore
}

// OpenAreas создаёт (при необходимости) директории всех областей.
func OpenAreas(uploadDir, convertedDir, tempDir string) (*Areas, error) {
	uploads, err := New(AreaUploads, uploadDir)
	if err != nil {
		return nil, err
	}
	converted, err := New(AreaConverted, convertedDir)
	if err != nil {
		return nil, err
	}
	temp, err := New(AreaTemp, tempDir)
	if err != nil {
		return nil, err
	}
	return &Areas{Uploads: uploads, Converted: converted, Temp: temp}, nil
}

// All возвращает все области в фиксированном порядке.
func (a *Areas) All() []*FileStore {
	return []*FileStore{a.Uploads, a.Converted, a.Temp}
}

// CheckWritable проверяет, что в каждую область можно записать файл.
func (a *Areas) CheckWritable() error {
	for _, fs := range a.All() {
		dir, err := fs.ScratchDir()
		if err != nil {
			return fmt.Errorf("область %s недоступна для записи: %w", fs.Name(), err)
		}
		if err := fs.RemoveEntry(filepath.Base(dir)); err != nil {
			return fmt.Errorf("область %s: %w", fs.Name(), err)
		}
	}
	return nil
}
