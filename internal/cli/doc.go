// Package cli — команды reportai-ctl.
//
// Тонкий клиент поверх HTTP API диспетчера: отправка батчей подзадач,
// статистика пулов, здоровье зависимостей, ручная ребалансировка.
package cli
