package domain

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination параметры пагинации
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination создаёт параметры пагинации с валидацией
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset возвращает смещение для SQL запроса
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit возвращает лимит для SQL запроса
func (p Pagination) Limit() int {
	return p.PageSize
}

// TotalPages возвращает число страниц, минимум одна
func (p Pagination) TotalPages(total int) int {
	pages := (total + p.PageSize - 1) / p.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// TaskFilter фильтры для списка задач
type TaskFilter struct {
	State   *TaskState `json:"state,omitempty"`
	Profile string     `json:"profile,omitempty"`
}

// TaskListResult результат запроса списка задач
type TaskListResult struct {
	Tasks      []*TrackedTask `json:"tasks"`
	Total      int            `json:"total"`
	Pagination Pagination     `json:"pagination"`
}
