// Package blob хранит крупные значения и файлы runs: длинные входы,
// логи выполнения и архивы результатов.
//
// Ссылка на blob — относительный путь "{uuid}/{имя файла}" внутри
// корневого каталога. Для вызывающего кода она непрозрачна.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNotFound — blob не найден.
var ErrNotFound = errors.New("blob not found")

// ErrInvalidRef — ссылка выходит за пределы хранилища.
var ErrInvalidRef = errors.New("invalid blob reference")

// Store — файловое хранилище blob'ов.
type Store struct {
	root string
}

// NewStore создаёт хранилище в каталоге root.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Put сохраняет содержимое r под именем name и возвращает ссылку.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: bad name %q", ErrInvalidRef, name)
	}

	ref := filepath.ToSlash(filepath.Join(uuid.NewString(), base))
	path := s.Path(ref)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.RemoveAll(filepath.Dir(path))
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}

	return ref, nil
}

// PutFile копирует локальный файл в хранилище.
func (s *Store) PutFile(ctx context.Context, name, src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	return s.Put(ctx, name, f)
}

// Get читает blob целиком.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}

	data, err := os.ReadFile(s.Path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Open открывает blob для потокового чтения.
func (s *Store) Open(ref string) (*os.File, error) {
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	f, err := os.Open(s.Path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return f, err
}

// Delete удаляет blob вместе с его каталогом. Отсутствующий blob — не ошибка.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(ref)) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	if err := os.RemoveAll(filepath.Dir(s.Path(ref))); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Path возвращает абсолютный путь к blob на диске.
func (s *Store) Path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(ref))
}
