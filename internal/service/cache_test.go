package service

import (
	"testing"
	"time"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
)

// TestLookupCache_GetSet проверяет базовые операции Get/Set.
func TestLookupCache_GetSet(t *testing.T) {
	cache := NewLookupCache(100, 5*time.Minute)

	record := &model.File{ID: "uuid-1", ShortCode: "Ab12Cd34", Name: "test.txt"}

	// Cache miss
	if _, ok := cache.Get("Ab12Cd34"); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	// Set + cache hit
	cache.Set("Ab12Cd34", record)
	got, ok := cache.Get("Ab12Cd34")
	if !ok {
		t.Fatal("ожидался cache hit после Set")
	}
	if got.ID != "uuid-1" || got.Name != "test.txt" {
		t.Errorf("получено %+v", got)
	}
}

// TestLookupCache_Delete проверяет инвалидацию.
func TestLookupCache_Delete(t *testing.T) {
	cache := NewLookupCache(100, 5*time.Minute)
	cache.Set("Ab12Cd34", &model.File{ID: "delete-me"})

	cache.Delete("Ab12Cd34")
	if _, ok := cache.Get("Ab12Cd34"); ok {
		t.Error("ожидался cache miss после Delete")
	}
}

// TestLookupCache_TTL проверяет истечение записей.
func TestLookupCache_TTL(t *testing.T) {
	cache := NewLookupCache(100, 50*time.Millisecond)
	cache.Set("Ab12Cd34", &model.File{ID: "ttl"})

	time.Sleep(100 * time.Millisecond)
	if _, ok := cache.Get("Ab12Cd34"); ok {
		t.Error("ожидался cache miss после истечения TTL")
	}
}

// TestLookupCache_MaxSize проверяет вытеснение при превышении размера.
func TestLookupCache_MaxSize(t *testing.T) {
	cache := NewLookupCache(2, 5*time.Minute)
	cache.Set("code0001", &model.File{ID: "1"})
	cache.Set("code0002", &model.File{ID: "2"})
	cache.Set("code0003", &model.File{ID: "3"})

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, ожидалось 2", cache.Len())
	}
	if _, ok := cache.Get("code0001"); ok {
		t.Error("самая старая запись должна быть вытеснена")
	}
}
