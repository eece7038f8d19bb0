// Package warehouse — доступ к аналитическому хранилищу (PostgreSQL).
//
// Конвейер генерации отчётов читает данные из хранилища: SQL-подзадачи
// выполняют произвольные read-only запросы, ETL-подзадачи выгружают
// данные для трансформации. Пакет даёт пул соединений и Runner
// с ограничением размера выборки.
package warehouse
