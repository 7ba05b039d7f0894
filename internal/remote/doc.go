// Package remote — клиент протокола удалённого сервера выполнения workflow.
//
// Интерфейсы Server и Run описывают только те операции, которые нужны
// воркеру: создать run, загрузить входы и учётные данные, запустить,
// опрашивать статус и уведомления, ответить на уведомление, забрать лог
// и выходы, удалить run.
//
// Client — реализация поверх REST API сервера:
//
//	POST   {base}/runs                        создать run (503 → ErrCapacityExceeded)
//	GET    {run}                              RunInfo
//	PUT    {run}/name                         имя run
//	PUT    {run}/input/{port}                 значение входа
//	PUT    {run}/input/{port}/file            содержимое файла входа
//	POST   {run}/security/credentials         учётные данные сервиса
//	PUT    {run}/status  "Operating"          старт (503 → сервер занят)
//	GET    {run}/status                       Initialized | Operating | Finished
//	GET    {run}/notifications?kind=requests  уведомления
//	POST   {run}/notifications/{id}/reply     ответ на уведомление
//	GET    {run}/log                          лог (404 → ErrNotFound)
//	GET    {run}/output/zip                   архив выходов
//	GET    {run}/output/ports[/{name}]        выходные порты и их значения
//	DELETE {run}                              удалить run
package remote
