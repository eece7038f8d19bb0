// Package balancer реализует динамическое распределение подзадач
// по типизированным пулам воркеров.
//
// Включает:
//   - pool.go — WorkerPool: пул воркеров одного типа, размещение/освобождение
//   - balancer.go — DynamicLoadBalancer: распределение батча, авто-масштабирование,
//     метрики равномерности, периодическая ребалансировка
//
// Всё состояние процессно-локально и защищено мьютексами:
// balancer рассчитан на конкурентные вызовы из разных горутин.
package balancer
