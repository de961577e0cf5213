package model

import "time"

// JobStatus — итог обработки задания.
type JobStatus string

const (
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job — запись журнала: одна попытка конвертации.
type Job struct {
	// ID — идентификатор задания (UUID v4)
	ID string `json:"id"`
	// Operation — выполненная операция
	Operation Operation `json:"operation"`
	// InputName — оригинальное имя входного файла (для нескольких — через запятую)
	InputName string `json:"input_name"`
	// InputChecksum — SHA-256 первого входного файла
	InputChecksum string `json:"input_checksum,omitempty"`
	// OutputName — имя результата в области converted (пусто для текстовых операций)
	OutputName string `json:"output_name,omitempty"`
	// OutputCount — количество файлов, выданных движком
	OutputCount int `json:"output_count"`
	// Status — итог
	Status JobStatus `json:"status"`
	// ErrorKind — вид ошибки для failed
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	// ErrorMessage — текст ошибки для failed
	ErrorMessage string `json:"error_message,omitempty"`
	// Subject — sub из JWT (пусто без аутентификации)
	Subject string `json:"subject,omitempty"`
	// CreatedAt — момент начала обработки (UTC)
	CreatedAt time.Time `json:"created_at"`
	// DurationMs — длительность обработки в миллисекундах
	DurationMs int64 `json:"duration_ms"`
}

// Succeeded проверяет успешность задания.
func (j *Job) Succeeded() bool {
	return j.Status == JobSucceeded
}
