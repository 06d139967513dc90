package optimizer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/models"
)

// Registry owns every optimization job. Jobs follow the single-writer rule:
// only the background task that runs the job mutates it, through WithJob;
// everyone else reads independent deep copies through Snapshot, so an
// in-progress mutation can never be observed partially.
type Registry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.OptimizationJob
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[uuid.UUID]*models.OptimizationJob),
	}
}

// Create registers a new job in the Starting state and returns its id.
func (r *Registry) Create(strategyID uuid.UUID, baseline *models.BacktestResult) uuid.UUID {
	job := &models.OptimizationJob{
		ID:         uuid.New(),
		StrategyID: strategyID,
		Status:     models.JobStatusStarting,
		Baseline:   baseline,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	log.Infof("created optimization job %s for strategy %s", job.ID, strategyID)
	return job.ID
}

// Snapshot returns an independent deep copy of the job state.
func (r *Registry) Snapshot(id uuid.UUID) (models.OptimizationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, found := r.jobs[id]
	if !found {
		return models.OptimizationJob{}, models.NewNotFoundError("optimization", id.String())
	}

	var snapshot models.OptimizationJob
	if err := copier.CopyWithOption(&snapshot, job, copier.Option{DeepCopy: true}); err != nil {
		return models.OptimizationJob{}, err
	}

	return snapshot, nil
}

// IDs lists every known job id.
func (r *Registry) IDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	return ids
}

// WithJob runs fn with exclusive access to the job's mutable state. Only
// the job's owning background task may call it. Progress is normalized
// after every mutation: clamped to [0,100], pinned below 100 while the job
// is still running, and forced to exactly 100 on completion.
func (r *Registry) WithJob(id uuid.UUID, fn func(*models.OptimizationJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, found := r.jobs[id]
	if !found {
		return models.NewNotFoundError("optimization", id.String())
	}

	fn(job)
	normalizeProgress(job)
	return nil
}

func normalizeProgress(job *models.OptimizationJob) {
	if job.Status == models.JobStatusCompleted {
		job.Progress = 100
		return
	}

	if job.Progress < 0 {
		job.Progress = 0
	}
	if job.Progress > 99 {
		job.Progress = 99
	}
}
