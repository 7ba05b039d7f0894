package remote

import (
	"context"
	"time"
)

// NotificationKind — вид уведомлений удалённого run.
type NotificationKind string

const (
	// NotificationRequests — уведомления, ожидающие ответа пользователя.
	NotificationRequests NotificationKind = "requests"

	// NotificationReplies — ответы на уведомления.
	NotificationReplies NotificationKind = "replies"

	// NotificationAll — все уведомления.
	NotificationAll NotificationKind = "all"
)

// Server — удалённый сервер выполнения workflow.
type Server interface {
	// CreateRun создаёт run из документа workflow.
	// При исчерпании ёмкости сервера возвращает ErrCapacityExceeded.
	CreateRun(ctx context.Context, workflow []byte) (Run, error)

	// Read читает произвольный ресурс сервера (например, страницу
	// взаимодействия) с указанным MIME-типом.
	Read(ctx context.Context, uri, mime string) ([]byte, error)
}

// Run — run на удалённом сервере.
type Run interface {
	ID() string

	// Info возвращает снимок статуса, времён и адресов коллекций.
	Info(ctx context.Context) (*RunInfo, error)

	SetName(ctx context.Context, name string) error
	SetInputValue(ctx context.Context, port, value string) error
	SetInputFile(ctx context.Context, port, path string) error
	AddPasswordCredential(ctx context.Context, uri, login, password string) error

	// Start запускает run. false — сервер занят, повторить позже.
	Start(ctx context.Context) (bool, error)

	Status(ctx context.Context) (string, error)
	Finished(ctx context.Context) (bool, error)

	Notifications(ctx context.Context, kind NotificationKind) ([]Notification, error)
	Reply(ctx context.Context, notificationID, feed, value string) error

	// Log сохраняет лог в dest. Если лога нет — ErrNotFound.
	Log(ctx context.Context, dest string) error

	// ZipOutput сохраняет архив всех выходов в dest.
	ZipOutput(ctx context.Context, dest string) error

	OutputPorts(ctx context.Context) ([]OutputPort, error)

	// OutputValue читает значение выходного порта.
	// limit > 0 — только первые limit байт, иначе целиком.
	OutputValue(ctx context.Context, port string, limit int64) ([]byte, error)

	Delete(ctx context.Context) error
}

// RunInfo — снимок удалённого run.
type RunInfo struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	CreateTime       time.Time `json:"createTime"`
	StartTime        time.Time `json:"startTime"`
	FinishTime       time.Time `json:"finishTime"`
	NotificationsURI string    `json:"notificationsUri"`
	InteractionsURI  string    `json:"interactionsUri"`
}

// Notification — уведомление удалённого run.
type Notification struct {
	ID       string `json:"id"`
	URI      string `json:"uri"`
	HasReply bool   `json:"hasReply"`
}

// OutputPort — описание выходного порта удалённого run.
type OutputPort struct {
	Name  string `json:"name"`
	Depth int    `json:"depth"`
	Type  string `json:"type"`
	Size  int64  `json:"size"`

	// Error — порт содержит ошибку вместо данных.
	Error bool `json:"error,omitempty"`
}

// Credentials — учётные данные для доступа к серверу (HTTP Basic).
type Credentials struct {
	Username string
	Password string
}
