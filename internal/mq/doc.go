// Package mq — транспорт событий runs поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим переподключением
//   - topology.go   — exchanges, queues и bindings
//   - publisher.go  — публикация run.pending и run.finished
//   - consumer.go   — потребление с ack/nack и отправкой в DLQ
//
// Сообщения:
//   - run.pending  — API создал run, его нужно выполнить
//   - run.finished — воркер довёл run до терминального состояния
//
// Очередь runs.pending настроена с DLQ: сообщение, которое не удалось
// обработать повторно, уходит в dlq.runs.
package mq
