// Пакет wal — файловый журнал публикации артефактов.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в MM_WAL_DIR.
// Запись содержит ключи объектов: незавершённая транзакция после сбоя
// указывает, какие объекты нужно удалить из объектного хранилища.
package wal

import (
	"time"
)

// OperationType — тип операции, записываемой в WAL.
type OperationType string

const (
	// OpPublish — публикация пары артефактов (основной + миниатюра)
	OpPublish OperationType = "publish"
	// OpDiscard — удаление артефактов изображения
	OpDiscard OperationType = "discard"
)

// TransactionStatus — статус транзакции WAL.
type TransactionStatus string

const (
	// StatusPending — транзакция начата, операция в процессе
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — транзакция успешно завершена
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — транзакция отменена, объекты удалены
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись WAL. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// ImageID — идентификатор изображения
	ImageID string `json:"image_id"`

	// ObjectKeys — ключи объектов, затронутых операцией
	ObjectKeys []string `json:"object_keys"`

	// StartedAt — время начала транзакции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения транзакции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла WAL для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
