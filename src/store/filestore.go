package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
)

// FileStore persists strategies and optimization snapshots as JSON files
// under a base directory, one subdirectory per record kind. Writes go
// through a temp file rename so a crash never leaves a half-written record.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

const (
	kindStrategy     = "strategies"
	kindOptimization = "optimizations"
)

func NewFileStore(baseDir string) (*FileStore, error) {
	for _, kind := range []string{kindStrategy, kindOptimization} {
		if err := os.MkdirAll(filepath.Join(baseDir, kind), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", kind, err)
		}
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) SaveStrategy(spec *models.StrategySpec) error {
	return s.write(kindStrategy, spec.ID, spec)
}

func (s *FileStore) GetStrategy(id uuid.UUID) (*models.StrategySpec, error) {
	var spec models.StrategySpec
	if err := s.read(kindStrategy, id, &spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

func (s *FileStore) ListStrategies() ([]*models.StrategySpec, error) {
	ids, err := s.list(kindStrategy)
	if err != nil {
		return nil, err
	}

	specs := make([]*models.StrategySpec, 0, len(ids))
	for _, id := range ids {
		spec, err := s.GetStrategy(id)
		if err != nil {
			log.Warnf("skipping unreadable strategy %s: %v", id, err)
			continue
		}

		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].CreatedAt.Before(specs[j].CreatedAt) })
	return specs, nil
}

func (s *FileStore) DeleteStrategy(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(kindStrategy, id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return models.NewNotFoundError("strategy", id.String())
		}

		return fmt.Errorf("failed to delete strategy %s: %w", id, err)
	}

	return nil
}

// SaveOptimization persists a finished job snapshot so its result survives
// a restart of the in-memory registry.
func (s *FileStore) SaveOptimization(job *models.OptimizationJob) error {
	return s.write(kindOptimization, job.ID, job)
}

func (s *FileStore) GetOptimization(id uuid.UUID) (*models.OptimizationJob, error) {
	var job models.OptimizationJob
	if err := s.read(kindOptimization, id, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *FileStore) write(kind string, id uuid.UUID, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	path := s.path(kind, id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit %s %s: %w", kind, id, err)
	}

	return nil
}

func (s *FileStore) read(kind string, id uuid.UUID, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewNotFoundError(strings.TrimSuffix(kind, "s"), id.String())
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

func (s *FileStore) list(kind string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.baseDir, kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (s *FileStore) path(kind string, id uuid.UUID) string {
	return filepath.Join(s.baseDir, kind, id.String()+".json")
}
