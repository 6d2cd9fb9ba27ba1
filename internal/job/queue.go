package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/video-stream/transcut/internal/pipeline"
	"github.com/video-stream/transcut/internal/progress"
)

var logger = logrus.WithField("component", "job")

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// finalEventRetention is how long a finished job's last event stays in the
// hub for late subscribers. After that they get FinalEvent from the database.
const finalEventRetention = time.Minute

// JobQueue manages job persistence and dispatching. Jobs run one at a time.
type JobQueue struct {
	db       *sql.DB
	hub      *progress.Hub
	mu       sync.RWMutex
	pending  chan string // job IDs to process
	cancels  map[string]context.CancelFunc
	handlers map[JobType]JobHandler
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	retain   time.Duration
}

// NewJobQueue creates a job queue on db. Call Start to run it.
func NewJobQueue(db *sql.DB) *JobQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &JobQueue{
		db:       db,
		hub:      progress.NewHub(),
		pending:  make(chan string, 100),
		cancels:  make(map[string]context.CancelFunc),
		handlers: make(map[JobType]JobHandler),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		retain:   finalEventRetention,
	}
	return q
}

// Start resumes unfinished jobs and starts the worker. Register handlers
// first.
func (q *JobQueue) Start() {
	q.started = true
	q.resumeJobs()
	go q.worker()
}

// RegisterHandler registers a handler for a job type
func (q *JobQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Subscribe streams the events of a job. The channel closes after the final
// event.
func (q *JobQueue) Subscribe(id string) (<-chan progress.Event, func()) {
	return q.hub.Subscribe(id)
}

// Enqueue creates a new job and adds it to the queue
func (q *JobQueue) Enqueue(jobType JobType, sessionID string, params interface{}) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    StatusPending,
		SessionID: sessionID,
		Params:    paramsJSON,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, status, session_id, params, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Status, job.SessionID, string(job.Params), job.Progress, job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	q.hub.Publish(progress.Event{RequestID: job.ID, Stage: string(StatusPending)})

	// Push to worker channel
	select {
	case q.pending <- job.ID:
	default:
		logger.WithField("job", job.ID).Warn("queue full, job will be picked up on restart")
	}

	return job, nil
}

const jobColumns = "id, type, status, session_id, params, progress, result, error, error_kind, created_at, started_at, completed_at"

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	job := &Job{}
	var params, result, errMsg, errKind sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.Type, &job.Status, &job.SessionID, &params, &job.Progress,
		&result, &errMsg, &errKind, &job.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if params.Valid {
		job.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	job.Error = errMsg.String
	job.ErrorKind = errKind.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	job, err := scanJob(q.db.QueryRow("SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// ListJobs returns jobs newest first. A non-empty sessionID filters by session.
func (q *JobQueue) ListJobs(sessionID string) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	q.mu.Lock()
	cancelFn, running := q.cancels[id]
	q.mu.Unlock()
	if running {
		cancelFn()
		return nil
	}

	res, err := q.db.Exec(`
		UPDATE jobs SET status = ?, error_kind = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		StatusCancelled, string(pipeline.KindCancelled), time.Now().UTC(), id, StatusPending,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		q.publishFinal(id, StatusCancelled, 0, pipeline.NewError(pipeline.KindCancelled, context.Canceled))
	}
	return nil
}

// UpdateProgress updates the progress of a running job
func (q *JobQueue) UpdateProgress(id string, percent float64) {
	q.db.Exec("UPDATE jobs SET progress = ? WHERE id = ?", percent, id)
}

// Stop cancels the running job and waits for the worker to exit.
func (q *JobQueue) Stop() {
	q.cancel()
	if q.started {
		<-q.done
	}
}

// worker processes jobs from the pending channel one at a time
func (q *JobQueue) worker() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case jobID := <-q.pending:
			q.processJob(jobID)
		}
	}
}

// processJob runs a single job
func (q *JobQueue) processJob(jobID string) {
	log := logger.WithField("job", jobID)
	job, err := q.GetJob(jobID)
	if err != nil {
		log.WithError(err).Error("failed to load job")
		return
	}

	// Skip if not pending
	if job.Status != StatusPending {
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		q.failJob(job, 0, fmt.Errorf("no handler for job type: %s", job.Type))
		return
	}

	// Mark as running
	now := time.Now().UTC()
	job.StartedAt = &now
	job.Status = StatusRunning
	q.db.Exec("UPDATE jobs SET status = ?, started_at = ? WHERE id = ?", StatusRunning, now, job.ID)

	ctx, cancelFn := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.cancels[job.ID] = cancelFn
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.cancels, job.ID)
		q.mu.Unlock()
		cancelFn()
	}()

	var last float64
	persisted := -progress.MinStep
	report := func(ev progress.Event) {
		if ev.Final {
			return
		}
		ev.RequestID = job.ID
		last = ev.Percent
		if ev.Percent-persisted >= progress.MinStep {
			persisted = ev.Percent
			q.UpdateProgress(job.ID, ev.Percent)
		}
		q.hub.Publish(ev)
	}

	log.WithField("type", job.Type).Info("job started")
	result, err := handler(ctx, job, report)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if q.ctx.Err() != nil {
			// left running so resumeJobs picks it up on the next start
			log.Info("job interrupted by shutdown")
			return
		}
		q.failJob(job, last, err)
		return
	}
	q.completeJob(job, result)
}

func (q *JobQueue) completeJob(job *Job, result any) {
	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			q.failJob(job, 100, fmt.Errorf("marshal result: %w", err))
			return
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	now := time.Now().UTC()
	q.db.Exec("UPDATE jobs SET status = ?, progress = 100, result = ?, completed_at = ? WHERE id = ?",
		StatusCompleted, resultJSON, now, job.ID)
	q.hub.Publish(progress.Event{
		RequestID: job.ID,
		Stage:     string(pipeline.StateComplete),
		Percent:   100,
		Final:     true,
	})
	q.forget(job.ID)
	logger.WithField("job", job.ID).Info("job completed")
}

func (q *JobQueue) failJob(job *Job, percent float64, err error) {
	kind := pipeline.KindOf(err)
	if kind == "" && errors.Is(err, context.Canceled) {
		kind = pipeline.KindCancelled
	}
	status := StatusFailed
	if kind == pipeline.KindCancelled {
		status = StatusCancelled
	}

	now := time.Now().UTC()
	q.db.Exec("UPDATE jobs SET status = ?, error = ?, error_kind = ?, completed_at = ? WHERE id = ?",
		status, err.Error(), string(kind), now, job.ID)
	q.publishFinal(job.ID, status, percent, err)
	logger.WithFields(logrus.Fields{"job": job.ID, "status": status, "kind": kind}).WithError(err).Warn("job did not complete")
}

func (q *JobQueue) publishFinal(id string, status JobStatus, percent float64, err error) {
	ev := progress.Event{
		RequestID: id,
		Stage:     string(pipeline.StateFailed),
		Percent:   percent,
		Final:     true,
		Kind:      string(pipeline.KindOf(err)),
		Message:   err.Error(),
	}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		ev.Message = pe.UserMessage()
	}
	if status == StatusCancelled {
		ev.Kind = string(pipeline.KindCancelled)
	}
	q.hub.Publish(ev)
	q.forget(id)
}

// forget drops a finished job's hub topic once the retention has passed.
func (q *JobQueue) forget(id string) {
	if q.retain <= 0 {
		q.hub.Remove(id)
		return
	}
	time.AfterFunc(q.retain, func() { q.hub.Remove(id) })
}

// FinalEvent synthesizes the closing event of a finished job, for subscribers
// that connect after the queue has forgotten it.
func FinalEvent(job *Job) progress.Event {
	ev := progress.Event{RequestID: job.ID, Percent: job.Progress, Final: true, Kind: job.ErrorKind, Message: job.Error}
	if job.CompletedAt != nil {
		ev.Time = *job.CompletedAt
	}
	if job.Status == StatusCompleted {
		ev.Stage = string(pipeline.StateComplete)
		ev.Percent = 100
	} else {
		ev.Stage = string(pipeline.StateFailed)
	}
	return ev
}

// resumeJobs re-queues any pending jobs found in DB on startup
func (q *JobQueue) resumeJobs() {
	// Mark any previously "running" jobs as pending (server restarted)
	q.db.Exec("UPDATE jobs SET status = ?, progress = 0 WHERE status = ?", StatusPending, StatusRunning)

	rows, err := q.db.Query("SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC", StatusPending)
	if err != nil {
		logger.WithError(err).Error("failed to resume jobs")
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		select {
		case q.pending <- id:
			count++
		default:
		}
	}

	if count > 0 {
		logger.WithField("count", count).Info("resumed pending jobs")
	}
}
