package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseParams собирает параметры алгоритма из JSON объекта и пар key=value.
// Значение пары разбирается как JSON, иначе остаётся строкой; пары
// перекрывают ключи из JSON.
func parseParams(raw string, pairs []string) (map[string]any, error) {
	params := map[string]any{}

	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
		if params == nil {
			params = map[string]any{}
		}
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		params[key] = decoded
	}

	return params, nil
}
