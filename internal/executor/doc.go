// Package executor — выполнение подзадач генерации отчётов.
//
// Каждому типу подзадачи соответствует свой Executor:
//   - SQLExecutor — SQL-запросы и обновление кэша (хранилище данных)
//   - AgentExecutor — анализ плейсхолдеров через Anthropic API
//   - ETLExecutor — извлечение и трансформация данных
//   - CompileExecutor — сборка секций отчёта из шаблона
//
// Executor'ы не знают про пулы воркеров и распределение нагрузки:
// dispatcher берёт executor из Registry по типу подзадачи уже после
// того, как balancer выделил слот.
package executor
