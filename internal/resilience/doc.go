// Package resilience защищает ненадёжные внешние вызовы
// (LLM, БД, HTTP-коннекторы) от каскадных отказов.
//
// Включает:
//   - breaker.go — CircuitBreaker: трёхфазный автомат CLOSED/OPEN/HALF_OPEN
//   - retry.go — RetryManager: повторы с экспоненциальным backoff и jitter
//   - monitor.go — ConnectionMonitor: скользящие метрики здоровья соединений
//   - manager.go — Manager: фасад «resilient operation» поверх трёх компонентов
//
// Контракт ошибок: открытый breaker и исчерпание повторов — ошибки,
// возвращаемые вызывающей стороне; ничего не проглатывается молча —
// каждый исход дополнительно фиксируется в мониторе.
package resilience
