package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
)

// ResultCache кэш результатов в памяти процесса.
// Стоимость записи равна числу узлов в результате.
type ResultCache struct {
	c   *ristretto.Cache[string, *domain.Result]
	ttl time.Duration
}

// NewResultCache создаёт новый экземпляр ResultCache
func NewResultCache(cfg config.CacheConfig) (*ResultCache, error) {
	maxItems := cfg.MaxItems
	if maxItems < 1 {
		maxItems = 1
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *domain.Result]{
		NumCounters:        maxItems * 10, // ~10x ожидаемого числа записей
		MaxCost:            maxItems * 1000,
		BufferItems:        64,
		IgnoreInternalCost: true, // Стоимость считаем только по узлам
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &ResultCache{c: c, ttl: cfg.TTL}, nil
}

// Get возвращает результат задачи
func (c *ResultCache) Get(taskID string) (*domain.Result, bool) {
	return c.c.Get(taskID)
}

// Set сохраняет результат задачи
func (c *ResultCache) Set(taskID string, result *domain.Result) {
	if result == nil {
		return
	}
	cost := int64(len(result.Values))
	if cost < 1 {
		cost = 1
	}
	c.c.SetWithTTL(taskID, result, cost, c.ttl)
}

// Delete удаляет результат задачи
func (c *ResultCache) Delete(taskID string) {
	c.c.Del(taskID)
}

// Wait дожидается применения буферизованных записей
func (c *ResultCache) Wait() {
	c.c.Wait()
}

// Close освобождает ресурсы кэша
func (c *ResultCache) Close() {
	c.c.Close()
}

// Nop кэш, который ничего не хранит. Нужен процессам, которые результаты
// только пишут, например воркеру: читает кэш лишь API.
type Nop struct{}

func (Nop) Get(string) (*domain.Result, bool) { return nil, false }

func (Nop) Set(string, *domain.Result) {}

func (Nop) Delete(string) {}
