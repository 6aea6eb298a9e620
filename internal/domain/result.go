package domain

import (
	"encoding/json"
	"sort"
	"strconv"
)

// DefaultTopK размер рейтинга по умолчанию
const DefaultTopK = 10

// Result результат идентификации: значение метрики для каждого узла сети
type Result struct {
	TaskID string         `json:"task_id"`
	Values map[string]any `json:"result"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// NodeScore числовое значение узла
type NodeScore struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"score"`
}

// Scores возвращает узлы с числовыми значениями по убыванию значения.
// При равенстве порядок по node_id; нечисловые значения пропускаются.
func (r *Result) Scores() []NodeScore {
	if r == nil {
		return nil
	}

	scores := make([]NodeScore, 0, len(r.Values))
	for node, raw := range r.Values {
		score, ok := toFloat(raw)
		if !ok {
			continue
		}
		scores = append(scores, NodeScore{NodeID: node, Score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].NodeID < scores[j].NodeID
	})
	return scores
}

// TopK возвращает k узлов с наибольшим значением; при k <= 0 все узлы
func (r *Result) TopK(k int) []NodeScore {
	scores := r.Scores()
	if k > 0 && k < len(scores) {
		scores = scores[:k]
	}
	return scores
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
