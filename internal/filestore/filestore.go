// Package filestore отвечает за хранение изображений слипов на диске.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound возвращается, если файл по ссылке отсутствует.
var ErrNotFound = errors.New("slip file not found")

// Store сохраняет файлы в заданном каталоге под непрозрачными ссылками.
type Store struct {
	dir string
}

// New создаёт хранилище в указанном каталоге, создавая его при необходимости.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slip dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save записывает данные в новый файл и возвращает ссылку на него.
// Расширение берётся из исходного имени файла, само имя не сохраняется.
func (s *Store) Save(data []byte, origName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(origName))
	if len(ext) > 8 {
		ext = ""
	}

	ref := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write slip file: %w", err)
	}
	return ref, nil
}

// Read возвращает содержимое файла по ссылке.
func (s *Store) Read(ref string) ([]byte, error) {
	// ссылка должна быть именем файла, а не путём
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read slip file: %w", err)
	}
	return data, nil
}
