package services

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/registry"
)

// RegistryService loads the registry document and caches the parsed form.
// The cache is invalidated by file mtime, so operators can edit the registry
// between runs without restarting long-lived processes.
type RegistryService struct {
	path string

	mu       sync.Mutex
	cached   *registry.Registry
	cachedAt time.Time
}

func NewRegistryService(path string) *RegistryService {
	return &RegistryService{path: path}
}

// Current returns the parsed, validated registry, reloading when the file
// changed since the last load.
func (s *RegistryService) Current(ctx context.Context) (*registry.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err == nil && s.cached != nil && !info.ModTime().After(s.cachedAt) {
		return s.cached, nil
	}

	reg, err := registry.Load(s.path)
	if err != nil {
		return nil, err
	}

	s.cached = reg
	if info != nil {
		s.cachedAt = info.ModTime()
	}
	logEntry(ctx, logrus.Fields{
		"path":         s.path,
		"domains":      len(reg.Domains),
		"aggregations": len(reg.Aggregations),
	}).Debug("registry loaded")
	return reg, nil
}

// Path returns the registry file location, for reporting.
func (s *RegistryService) Path() string {
	return s.path
}
