// Package maintenance — периодическое обслуживание пулов воркеров.
//
// По расписанию выполняет ребалансировку (удаление воркеров без
// heartbeat, восстановление минимума активных) и логирует сводку
// здоровья внешних зависимостей.
package maintenance
