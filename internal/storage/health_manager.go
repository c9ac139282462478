package storage

import (
	"sort"
	"sync"
	"time"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the last known state of a storage backend
type Health struct {
	LastCheck time.Time `json:"lastCheck"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// HealthManager tracks backend health in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]Health),
	}
}

// UpdateHealth records the health of a backend
func (hm *HealthManager) UpdateHealth(backend string, h Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[backend] = h
}

// MarkHealthy records a successful operation
func (hm *HealthManager) MarkHealthy(backend, message string) {
	hm.UpdateHealth(backend, Health{LastCheck: time.Now(), Status: StatusHealthy, Message: message})
}

// MarkUnhealthy records a failed operation
func (hm *HealthManager) MarkUnhealthy(backend, message string, err error) {
	h := Health{LastCheck: time.Now(), Status: StatusUnhealthy, Message: message}
	if err != nil {
		h.Error = err.Error()
	}
	hm.UpdateHealth(backend, h)
}

// GetHealth retrieves the health of one backend
func (hm *HealthManager) GetHealth(backend string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	h, exists := hm.health[backend]
	return h, exists
}

// GetAllHealth returns the health of every backend, keyed by name
func (hm *HealthManager) GetAllHealth() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// Backends returns the names of every tracked backend, sorted
func (hm *HealthManager) Backends() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.health))
	for k := range hm.health {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IsHealthy checks if a backend is healthy and its status is recent
func (hm *HealthManager) IsHealthy(backend string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(backend)
	if !exists {
		return false
	}

	if time.Since(health.LastCheck) > maxAge {
		return false
	}

	return health.Status == StatusHealthy
}
