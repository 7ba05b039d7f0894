package domain

import (
	"time"

	"github.com/google/uuid"
)

// Interaction — точка в удалённом выполнении, ожидающая ответа человека.
//
// Создаётся лениво, когда воркер впервые видит уведомление.
// Пара (RunID, UniqueID) уникальна. Replied переходит только false → true.
type Interaction struct {
	ID    uuid.UUID `json:"id"`
	RunID uuid.UUID `json:"run_id"`

	// UniqueID — идентификатор уведомления на удалённом сервере.
	UniqueID string `json:"unique_id"`

	// Page — страница взаимодействия с переписанными адресами.
	// После первой записи не меняется.
	Page string `json:"page,omitempty"`

	// Replied — ответ отправлен (нами или кем-то другим).
	Replied bool `json:"replied"`

	// FeedReply и OutputValue — ответ, оставленный пользователем
	// через хост-приложение. Воркер пересылает его на сервер.
	FeedReply   string `json:"feed_reply,omitempty"`
	OutputValue string `json:"output_value,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPage возвращает true, если страница уже сохранена.
func (i *Interaction) HasPage() bool {
	return i.Page != ""
}

// HasLocalReply возвращает true, если ответ готов к пересылке.
func (i *Interaction) HasLocalReply() bool {
	return i.FeedReply != "" && i.OutputValue != ""
}

// MarkReplied выставляет флаг ответа.
func (i *Interaction) MarkReplied() {
	i.Replied = true
}

// ServiceCredential — учётные данные сервиса, используемого workflow.
// Принадлежат хост-приложению, воркер их только читает.
type ServiceCredential struct {
	ID       uuid.UUID `json:"id"`
	URI      string    `json:"uri"`
	Login    string    `json:"login"`
	Password string    `json:"-"`
}

// Workflow — документ workflow хост-приложения.
type Workflow struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title,omitempty"`
	Document []byte    `json:"-"`
}
