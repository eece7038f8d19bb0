// Package domain содержит общие типы ядра распределения задач:
// типы подзадач и воркеров, дескрипторы подзадач, результаты аллокации.
//
// Типы из этого пакета используются всеми компонентами
// (balancer, resilience, dispatcher, executor) и не содержат логики,
// кроме тривиальных методов доступа.
package domain
