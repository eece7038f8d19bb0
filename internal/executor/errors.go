package executor

import "errors"

// Ошибки выполнения подзадач.
var (
	// ErrUnknownSubtaskType — нет executor'а для данного типа подзадачи.
	ErrUnknownSubtaskType = errors.New("unknown subtask type")

	// ErrInvalidPayload — в payload подзадачи нет обязательных полей.
	ErrInvalidPayload = errors.New("invalid subtask payload")

	// ErrQueryFailed — запрос к хранилищу завершился ошибкой.
	ErrQueryFailed = errors.New("warehouse query failed")

	// ErrAgentRequest — запрос к AI-агенту завершился ошибкой.
	ErrAgentRequest = errors.New("agent request failed")
)
