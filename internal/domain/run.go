package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — одна попытка выполнения workflow на удалённом сервере.
//
// Run создаётся хост-приложением в состоянии pending вместе с входными
// портами. Дальше его ведёт воркер: создаёт удалённый run, загружает
// входы, запускает, опрашивает и собирает результаты.
//
// Пока воркер работает, внешний процесс может читать run и выставлять
// флаг Cancelled. Остальные поля пишет только воркер.
type Run struct {
	// ID — локальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на workflow хост-приложения.
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Name — отображаемое имя run (передаётся на сервер перед стартом).
	Name string `json:"name"`

	// RemoteID — идентификатор run на удалённом сервере.
	// Пустой, пока создание не удалось.
	RemoteID string `json:"remote_id,omitempty"`

	// State — текущее состояние жизненного цикла.
	State RunState `json:"state"`

	// StatusMessage — что воркер делает прямо сейчас.
	StatusMessage StatusMessage `json:"status_message"`

	// FailureMessage — текст ошибки и стек. Заполняется только при failed.
	FailureMessage string `json:"failure_message,omitempty"`

	// CreateTime, StartTime, FinishTime — время на удалённом сервере.
	// Каждое выставляется один раз, CreateTime <= StartTime <= FinishTime.
	CreateTime *time.Time `json:"create_time,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	FinishTime *time.Time `json:"finish_time,omitempty"`

	// ProxyNotifications и ProxyInteractions — адреса коллекций уведомлений
	// и взаимодействий на сервере. Их вхождения переписываются в страницах
	// взаимодействий на адрес нашего прокси.
	ProxyNotifications string `json:"proxy_notifications,omitempty"`
	ProxyInteractions  string `json:"proxy_interactions,omitempty"`

	// Cancelled — запрос отмены от внешнего процесса. Воркер только читает.
	Cancelled bool `json:"cancelled"`

	// ResultsRef — путь к архиву всех выходов в blob-хранилище.
	ResultsRef string `json:"results_ref,omitempty"`

	// LogRef — путь к логу выполнения в blob-хранилище.
	LogRef string `json:"log_ref,omitempty"`

	// ClaimedAt — когда run был взят воркером. Nil, пока не взят.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт pending run для workflow.
func NewRun(workflowID uuid.UUID, name string) *Run {
	return &Run{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		Name:          name,
		State:         RunStatePending,
		StatusMessage: StatusPending,
		CreatedAt:     time.Now(),
	}
}

// Duration возвращает продолжительность выполнения на сервере.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartTime == nil || r.FinishTime == nil {
		return 0
	}
	return r.FinishTime.Sub(*r.StartTime)
}

// IsFinished возвращает true, если run в терминальном состоянии.
func (r *Run) IsFinished() bool {
	return r.State.IsTerminal()
}

// MarkInitialized фиксирует успешное создание удалённого run.
func (r *Run) MarkInitialized(remoteID string, createTime time.Time, notificationsURI, interactionsURI string) {
	r.RemoteID = remoteID
	r.State = RunStateInitialized
	r.CreateTime = setOnce(r.CreateTime, createTime, nil)
	r.ProxyNotifications = notificationsURI
	r.ProxyInteractions = interactionsURI
}

// MarkRunning переводит run в running и фиксирует время старта.
func (r *Run) MarkRunning(startTime time.Time) {
	r.State = RunStateRunning
	r.StartTime = setOnce(r.StartTime, startTime, r.CreateTime)
}

// MarkFinished фиксирует время завершения. Состояние finished
// выставляется отдельно через MarkSucceeded после сбора результатов.
func (r *Run) MarkFinished(finishTime time.Time) {
	lower := r.StartTime
	if lower == nil {
		lower = r.CreateTime
	}
	r.FinishTime = setOnce(r.FinishTime, finishTime, lower)
}

// MarkSucceeded переводит run в finished.
func (r *Run) MarkSucceeded() {
	r.State = RunStateFinished
	r.FailureMessage = ""
}

// MarkFailed переводит run в failed с сообщением об ошибке.
func (r *Run) MarkFailed(msg string) {
	if msg == "" {
		msg = "unknown error"
	}
	r.State = RunStateFailed
	r.FailureMessage = msg
}

// MarkDeleted переводит run в deleted после отмены.
func (r *Run) MarkDeleted() {
	r.State = RunStateDeleted
}

// setOnce возвращает существующее значение, если оно есть, иначе t,
// но не раньше lower.
func setOnce(current *time.Time, t time.Time, lower *time.Time) *time.Time {
	if current != nil {
		return current
	}
	if lower != nil && t.Before(*lower) {
		t = *lower
	}
	return &t
}
