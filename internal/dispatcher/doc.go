// Package dispatcher — связующий слой конвейера выполнения подзадач.
//
// Dispatcher принимает батчи подзадач (напрямую через Submit или из
// очереди subtasks.pending), отдаёт их balancer'у на распределение,
// выполняет размещённые подзадачи через executor'ов под защитой
// resilience.Manager и публикует события завершения.
//
// Жизненный цикл слота воркера закрыт внутри dispatcher'а: каждое
// успешное размещение гарантированно завершается вызовом CompleteTask,
// независимо от исхода выполнения.
package dispatcher
