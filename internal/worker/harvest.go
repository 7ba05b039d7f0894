package worker

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/remote"
)

// harvestOutputs сохраняет выходные порты удалённого run.
//
// Inline-значение получают только текстовые скаляры без ошибки:
// целиком, если короче InlineThreshold байт, иначе префикс.
// Остальные порты несут только метаданные.
func (e *execution) harvestOutputs(ctx context.Context) error {
	ports, err := e.remote.OutputPorts(ctx)
	if err != nil {
		return fmt.Errorf("list output ports: %w", err)
	}

	outputs := make([]domain.OutputPort, 0, len(ports))
	for _, p := range ports {
		out := domain.OutputPort{
			Port: domain.Port{
				ID:    uuid.New(),
				RunID: e.run.ID,
				Name:  p.Name,
				Depth: p.Depth,
			},
			Metadata: outputMetadata(p),
		}

		if inlinable(p) {
			var limit int64
			if p.Size >= domain.InlineThreshold {
				limit = domain.InlineThreshold
			}
			data, err := e.remote.OutputValue(ctx, p.Name, limit)
			if err != nil {
				return fmt.Errorf("read output %s: %w", p.Name, err)
			}
			out.Value = inlineText(data, limit > 0)
		}

		outputs = append(outputs, out)
	}

	if err := e.w.ports.CreateOutputs(ctx, e.run.ID, outputs); err != nil {
		return fmt.Errorf("save outputs: %w", err)
	}

	e.logger.Debug("outputs harvested", "count", len(outputs))
	return nil
}

func outputMetadata(p remote.OutputPort) map[string]any {
	md := map[string]any{
		"size": p.Size,
		"type": p.Type,
	}
	if p.Error {
		md["error"] = true
	}
	return md
}

func inlinable(p remote.OutputPort) bool {
	return p.Depth == 0 && !p.Error && strings.HasPrefix(p.Type, "text/")
}

// inlineText готовит значение выхода к записи в TEXT-колонку.
//
// У обрезанного префикса отбрасывается только неполный последний символ.
// Байты, не образующие UTF-8, заменяются на U+FFFD, NUL удаляется:
// Postgres не принимает ни то, ни другое. Корректный UTF-8 сохраняется
// без изменений.
func inlineText(data []byte, truncated bool) string {
	if truncated {
		data = trimPartialRune(data)
	}
	s := strings.ToValidUTF8(string(data), string(utf8.RuneError))
	return strings.ReplaceAll(s, "\x00", "")
}

// trimPartialRune отрезает неполный UTF-8 символ в конце префикса.
// Смотрит не дальше utf8.UTFMax-1 последних байт.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			return b[:start]
		}
		return b
	}
	return b
}
