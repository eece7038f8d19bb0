package domain

// SubtaskType — тип подзадачи в конвейере генерации отчётов.
type SubtaskType string

const (
	// SubtaskPlaceholderAnalysis — анализ плейсхолдера отчёта через AI-агента.
	SubtaskPlaceholderAnalysis SubtaskType = "PLACEHOLDER_ANALYSIS"

	// SubtaskSQLQuery — выполнение SQL-запроса к хранилищу данных.
	SubtaskSQLQuery SubtaskType = "SQL_QUERY"

	// SubtaskDataExtraction — извлечение и трансформация данных (ETL).
	SubtaskDataExtraction SubtaskType = "DATA_EXTRACTION"

	// SubtaskReportCompile — сборка итогового отчёта из готовых секций.
	SubtaskReportCompile SubtaskType = "REPORT_COMPILE"

	// SubtaskCacheUpdate — обновление кэша результатов запросов.
	SubtaskCacheUpdate SubtaskType = "CACHE_UPDATE"
)

// WorkerTypeFor возвращает тип воркера, обрабатывающий данный тип подзадачи.
// Второе значение false, если тип подзадачи неизвестен.
func (t SubtaskType) WorkerTypeFor() (WorkerType, bool) {
	wt, ok := subtaskWorkerMapping[t]
	return wt, ok
}

// subtaskWorkerMapping — фиксированное отображение типа подзадачи
// на тип воркера. CACHE_UPDATE выполняется SQL-воркерами, поскольку
// обновление кэша — это те же запросы к хранилищу.
var subtaskWorkerMapping = map[SubtaskType]WorkerType{
	SubtaskPlaceholderAnalysis: WorkerAgentAnalysis,
	SubtaskSQLQuery:            WorkerSQLExecution,
	SubtaskDataExtraction:      WorkerETLProcessing,
	SubtaskReportCompile:       WorkerReportGeneration,
	SubtaskCacheUpdate:         WorkerSQLExecution,
}

// Subtask — дескриптор подзадачи, поступающей на распределение.
//
// Subtask создаётся бизнес-слоем при разбиении задачи генерации отчёта
// и передаётся в DynamicLoadBalancer.DistributeTask.
type Subtask struct {
	// ID — уникальный идентификатор подзадачи (назначается бизнес-слоем).
	ID string `json:"id"`

	// Type — тип подзадачи, определяет пул воркеров.
	Type SubtaskType `json:"type"`

	// Priority — приоритет (больше = важнее). Подзадачи с высоким
	// приоритетом получают дефицитную ёмкость первыми.
	Priority int `json:"priority"`

	// EstimatedDuration — ожидаемая длительность в секундах.
	// 0 — использовать значение по умолчанию для типа воркера.
	EstimatedDuration int `json:"estimated_duration,omitempty"`

	// Payload — входные данные для executor'а (SQL-текст, промпт, шаблон...).
	Payload map[string]any `json:"payload,omitempty"`
}
