package domain

// WorkerType — тип логического воркера.
//
// Каждому типу соответствует отдельный пул с собственной ёмкостью
// и характерным временем выполнения.
type WorkerType string

const (
	// WorkerAgentAnalysis — AI-агенты для анализа плейсхолдеров.
	// Медленные и дорогие, поэтому ёмкость минимальная.
	WorkerAgentAnalysis WorkerType = "AGENT_ANALYSIS"

	// WorkerSQLExecution — исполнители SQL-запросов к хранилищу.
	WorkerSQLExecution WorkerType = "SQL_EXECUTION"

	// WorkerETLProcessing — обработчики извлечения и трансформации данных.
	WorkerETLProcessing WorkerType = "ETL_PROCESSING"

	// WorkerReportGeneration — сборщики итоговых отчётов.
	// Сборка строго последовательная, поэтому ёмкость 1.
	WorkerReportGeneration WorkerType = "REPORT_GENERATION"
)

// AllWorkerTypes возвращает все известные типы воркеров.
func AllWorkerTypes() []WorkerType {
	return []WorkerType{
		WorkerAgentAnalysis,
		WorkerSQLExecution,
		WorkerETLProcessing,
		WorkerReportGeneration,
	}
}
