// cache.go — LRU-кэш поиска файлов по короткому коду с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_lookup_cache_hits_total",
		Help: "Общее количество попаданий в кэш поиска по коду.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fb_lookup_cache_misses_total",
		Help: "Общее количество промахов кэша поиска по коду.",
	})
)

// LookupCache — кэш записей файлов по короткому коду.
// Записи неизменяемы, поэтому инвалидация нужна только при удалении.
type LookupCache struct {
	cache *expirable.LRU[string, *model.File]
}

// NewLookupCache создаёт кэш с указанным максимальным размером и TTL.
func NewLookupCache(maxSize int, ttl time.Duration) *LookupCache {
	return &LookupCache{cache: expirable.NewLRU[string, *model.File](maxSize, nil, ttl)}
}

// Get возвращает запись по коду. Обновляет метрики hit/miss.
func (c *LookupCache) Get(code string) (*model.File, bool) {
	val, ok := c.cache.Get(code)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет запись в кэш.
func (c *LookupCache) Set(code string, f *model.File) {
	c.cache.Add(code, f)
}

// Delete удаляет запись из кэша.
func (c *LookupCache) Delete(code string) {
	c.cache.Remove(code)
}

// Len возвращает число записей в кэше.
func (c *LookupCache) Len() int {
	return c.cache.Len()
}
