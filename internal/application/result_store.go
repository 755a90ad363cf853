package app

import (
	"sync"

	"thermal-vision/internal/domain/entity"
)

// ResultStore хранит последний результат детекции и отдаёт его целиком.
type ResultStore struct {
	mu         sync.RWMutex
	current    *entity.DetectionResult
	generation uint64
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// Current возвращает текущий результат или nil.
func (s *ResultStore) Current() *entity.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation растёт при каждом изменении содержимого.
func (s *ResultStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *ResultStore) Replace(result *entity.DetectionResult) {
	s.mu.Lock()
	s.current = result
	s.generation++
	s.mu.Unlock()
}

// ReplaceIf заменяет результат, только если с момента generation хранилище не менялось.
func (s *ResultStore) ReplaceIf(generation uint64, result *entity.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return false
	}
	s.current = result
	s.generation++
	return true
}

// Clear сбрасывает результат. Повторный вызов ничего не меняет,
// но всё равно делает недействительными запросы, начатые до него.
func (s *ResultStore) Clear() (cleared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared = s.current != nil
	s.current = nil
	s.generation++
	return cleared
}
