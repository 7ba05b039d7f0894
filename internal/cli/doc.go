// Package cli реализует инструмент командной строки Player.
//
// # Обзор
//
// CLI — клиентская утилита для работы с Player API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI загружает документы workflow, создаёт runs, следит за ними,
// запрашивает отмену и отвечает на взаимодействия.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Player API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	run, err := client.GetRun(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: player run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - workflow: upload
//   - run: list, start, show, cancel, inputs, outputs, interactions, reply
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
