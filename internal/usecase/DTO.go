package usecase

import "github.com/plastinin/identtracker/internal/domain"

// SubmitTaskInput входные данные для создания отслеживаемой задачи
type SubmitTaskInput struct {
	FileID       int64          // Идентификатор загруженного файла сети
	AlgorithmKey string         // Стабильный ключ алгоритма (algo_key)
	Params       map[string]any // Параметры алгоритма
	Profile      string         // Профиль настроек опроса
}

// Submission преобразует входные данные в запрос к удалённому API
func (in SubmitTaskInput) Submission() domain.Submission {
	return domain.Submission{
		FileID:       in.FileID,
		AlgorithmKey: in.AlgorithmKey,
		Params:       in.Params,
	}
}

