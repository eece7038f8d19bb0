// Package api — HTTP API диспетчера подзадач.
//
// REST API для админки и CLI:
//   - приём батчей подзадач
//   - статистика пулов и последних батчей
//   - здоровье внешних зависимостей
//   - ручная ребалансировка пулов
//
// Использует стандартный net/http с паттернами маршрутов Go 1.22+.
package api
