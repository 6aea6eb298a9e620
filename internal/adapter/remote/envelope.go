package remote

import (
	"bytes"
	"encoding/json"
)

// StatusSuccess значение status в успешном ответе
const StatusSuccess = "success"

// statusUnauthorized значение status при недействительном токене
const statusUnauthorized = "unauthorized"

// envelope общий конверт ответа API. Поля задачи встречаются
// как на верхнем уровне, так и внутри data.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`

	TaskID    string         `json:"task_id"`
	TaskState string         `json:"task_state"`
	Progress  *int           `json:"progress"`
	Stage     string         `json:"stage"`
	Error     *remoteError   `json:"error"`
	Result    map[string]any `json:"result"`
	Meta      map[string]any `json:"meta"`
}

// taskData содержимое data
type taskData struct {
	TaskID    string         `json:"task_id"`
	Status    string         `json:"status"` // Состояние задачи на сервере
	TaskState string         `json:"task_state"`
	Progress  *int           `json:"progress"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Error     *remoteError   `json:"error"`
	Result    map[string]any `json:"result"`
	Meta      map[string]any `json:"meta"`
}

// remoteError описание ошибки задачи: объект {code, message} или строка
type remoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *remoteError) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &e.Message)
	}
	type plain remoteError
	return json.Unmarshal(b, (*plain)(e))
}

func (e *envelope) hasData() bool {
	trimmed := bytes.TrimSpace(e.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// task собирает поля задачи: сначала data, поверх поля верхнего уровня
func (e *envelope) task() (taskData, error) {
	var t taskData
	if e.hasData() {
		if err := json.Unmarshal(e.Data, &t); err != nil {
			return taskData{}, err
		}
	} else {
		t.Message = e.Message
	}

	if e.TaskID != "" {
		t.TaskID = e.TaskID
	}
	if e.TaskState != "" {
		t.TaskState = e.TaskState
	}
	if e.Progress != nil {
		t.Progress = e.Progress
	}
	if e.Stage != "" {
		t.Stage = e.Stage
	}
	if e.Error != nil {
		t.Error = e.Error
	}
	if e.Result != nil {
		t.Result = e.Result
	}
	if e.Meta != nil {
		t.Meta = e.Meta
	}
	return t, nil
}

// state возвращает состояние задачи: task_state, иначе data.status
func (t taskData) state() string {
	if t.TaskState != "" {
		return t.TaskState
	}
	return t.Status
}
