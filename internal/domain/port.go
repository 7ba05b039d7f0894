package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// InlineThreshold — граница, до которой значение порта хранится inline.
// Для входов считается в символах, для выходов — в байтах.
const InlineThreshold = 255

// PortKind — вид порта.
type PortKind string

const (
	PortKindInput  PortKind = "input"
	PortKindOutput PortKind = "output"
)

// ValueStore — хранилище для значений, не помещающихся inline.
//
// Ссылка (ref) — непрозрачный путь, который возвращает Put.
type ValueStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	Path(ref string) string
}

// Port — общие поля входных и выходных портов.
//
// Имя уникально в пределах run и вида порта без учёта регистра.
type Port struct {
	ID    uuid.UUID `json:"id"`
	RunID uuid.UUID `json:"run_id"`
	Name  string    `json:"name"`

	// Depth — вложенность данных, 0 — скаляр.
	Depth int `json:"depth"`
}

// InputPort — входной порт run.
type InputPort struct {
	Port

	// InlineValue — значение или его префикс длиной InlineThreshold.
	InlineValue string `json:"value,omitempty"`

	// FileRef — ссылка на полное значение в ValueStore.
	FileRef string `json:"file_ref,omitempty"`
}

// NewInputPort создаёт пустой входной порт.
func NewInputPort(runID uuid.UUID, name string, depth int) *InputPort {
	return &InputPort{Port: Port{ID: uuid.New(), RunID: runID, Name: name, Depth: depth}}
}

// HasFile возвращает true, если значение лежит в ValueStore.
func (p *InputPort) HasFile() bool {
	return p.FileRef != ""
}

// IsEmpty возвращает true, если у порта нет ни значения, ни файла.
func (p *InputPort) IsEmpty() bool {
	return p.InlineValue == "" && p.FileRef == ""
}

// Value возвращает эффективное значение порта: содержимое файла,
// если он есть, иначе inline-значение.
func (p *InputPort) Value(ctx context.Context, store ValueStore) (string, error) {
	if !p.HasFile() {
		return p.InlineValue, nil
	}
	data, err := store.Get(ctx, p.FileRef)
	if err != nil {
		return "", fmt.Errorf("read input %s: %w", p.Name, err)
	}
	return string(data), nil
}

// SetValue выставляет значение порта.
//
// Значение длиннее InlineThreshold символов сохраняется целиком в store,
// inline остаётся префикс. Короткое значение удаляет существующий файл.
func (p *InputPort) SetValue(ctx context.Context, store ValueStore, v string) error {
	if runes := []rune(v); len(runes) > InlineThreshold {
		ref, err := store.Put(ctx, "value.txt", strings.NewReader(v))
		if err != nil {
			return fmt.Errorf("spill input %s: %w", p.Name, err)
		}
		if p.FileRef != "" && p.FileRef != ref {
			if err := store.Delete(ctx, p.FileRef); err != nil {
				// Порт остаётся со старым файлом, новый удаляется.
				return errors.Join(
					fmt.Errorf("drop replaced input file %s: %w", p.Name, err),
					store.Delete(ctx, ref),
				)
			}
		}
		p.InlineValue = string(runes[:InlineThreshold])
		p.FileRef = ref
		return nil
	}

	if p.FileRef != "" {
		if err := store.Delete(ctx, p.FileRef); err != nil {
			return fmt.Errorf("drop input file %s: %w", p.Name, err)
		}
		p.FileRef = ""
	}
	p.InlineValue = v
	return nil
}

// SetFile привязывает к порту уже сохранённый файл.
func (p *InputPort) SetFile(ref string) {
	p.InlineValue = ""
	p.FileRef = ref
}

// OutputPort — выходной порт run.
//
// Inline-значение есть только у текстовых скаляров, и оно может быть
// обрезано до InlineThreshold байт. Полные данные — в архиве результатов.
type OutputPort struct {
	Port

	Value string `json:"value,omitempty"`

	// Metadata — как минимум size и type, плюс всё, что сообщил сервер.
	Metadata map[string]any `json:"metadata"`
}

// Size возвращает размер из метаданных, -1 если его нет.
func (p *OutputPort) Size() int64 {
	switch v := p.Metadata["size"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return -1
	}
}

// Type возвращает MIME-тип из метаданных.
func (p *OutputPort) Type() string {
	s, _ := p.Metadata["type"].(string)
	return s
}

// IsTruncated возвращает true, если Value — только префикс данных.
func (p *OutputPort) IsTruncated() bool {
	size := p.Size()
	return p.Value != "" && size > int64(len(p.Value))
}
