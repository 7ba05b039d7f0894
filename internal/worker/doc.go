// Package worker ведёт run через жизненный цикл на удалённом сервере.
//
// # Обзор
//
// Worker получает ID pending run и синхронно доводит его до одного из
// терминальных состояний: finished, failed или deleted (отмена).
// Один вызов Execute — один run. Параллельность между runs обеспечивает
// вызывающая сторона (см. пакет dispatch).
//
//	w := worker.New(worker.Config{
//	    Runs:         runRepo,
//	    Ports:        portRepo,
//	    Interactions: interactionRepo,
//	    Credentials:  credentialRepo,
//	    Workflows:    workflowRepo,
//	    Blobs:        blobStore,
//	    Server:       remoteClient,
//	    Rewriter:     rewriter,
//	    Logger:       logger,
//	})
//
//	run, err := w.Execute(ctx, runID)
//
// # Фазы
//
//  1. pre-run callback (если задан)
//  2. создание удалённого run, при нехватке ёмкости — ожидание ("full")
//  3. загрузка входов, учётных данных и имени
//  4. старт, при нехватке ёмкости — ожидание ("busy")
//  5. опрос до завершения; уведомления превращаются во взаимодействия
//  6. сбор лога, архива и выходных портов, удаление удалённого run
//  7. post-run callback (если задан)
//
// Статус сохраняется перед каждым блокирующим вызовом сервера.
//
// # Отмена
//
// Флаг отмены перечитывается из хранилища только перед ожиданием
// ёмкости и перед каждой итерацией опроса. Увидев его, воркер пытается
// забрать лог и удалить удалённый run, вызывает Cancelled callback
// и сохраняет run в deleted. Ошибки на этом пути только логируются.
//
// # Ошибки
//
// Любая другая ошибка (сервер, хранилище, pre-run/post-run callback,
// паника) переводит run в failed. В FailureMessage пишется текст ошибки
// и стек, статус остаётся "Failed". Нет лога — не ошибка.
//
// Временный каталог для загрузок удаляется на любом пути выхода.
package worker
