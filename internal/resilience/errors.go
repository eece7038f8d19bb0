package resilience

import "errors"

// Ошибки пакета resilience.
var (
	// ErrCircuitOpen — вызов отклонён: breaker в состоянии OPEN
	// и recovery timeout ещё не истёк. Внутренних повторов нет,
	// ошибка уходит вызывающей стороне сразу.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)
