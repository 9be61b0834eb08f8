package app

import (
	"context"
	"time"

	"github.com/raysh454/clipper/internal/registry"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status registry.JobStatus `json:"status,omitempty"`
	Error  string             `json:"error,omitempty"`

	// For progress
	Percent float64 `json:"percent,omitempty"`

	// For the final result
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Job is the in-memory view of a clip that is still in flight.
type Job struct {
	ID        string             `json:"id"`
	SourceURL string             `json:"source_url"`
	Status    registry.JobStatus `json:"status"`
	Percent   float64            `json:"percent"`
	StartedAt time.Time          `json:"started_at"`

	cancel  context.CancelFunc
	subs    map[int]chan JobEvent
	nextSub int
}

const subscriberBuffer = 32

// addJob registers a job unless its id is running or still owns a delivered
// output file.
func (o *Orchestrator) addJob(job *Job) bool {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if _, exists := o.jobs[job.ID]; exists {
		return false
	}
	if _, held := o.held[job.ID]; held {
		return false
	}
	o.jobs[job.ID] = job
	return true
}

// removeJob drops the job and closes every subscriber channel so websocket
// loops terminate.
func (o *Orchestrator) removeJob(jobID string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return
	}
	for id, ch := range job.subs {
		close(ch)
		delete(job.subs, id)
	}
	delete(o.jobs, jobID)
}

func (o *Orchestrator) emitJobEvent(ev JobEvent) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, ok := o.jobs[ev.JobID]
	if !ok {
		return
	}
	switch ev.Type {
	case JobEventStatus, JobEventResult:
		job.Status = ev.Status
	case JobEventProgress:
		job.Percent = ev.Percent
	}

	// Non-blocking send; drop if buffer is full.
	for _, ch := range job.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a listener for events of an in-flight job. The first
// event on the channel is a snapshot of the current status. ok is false when
// the job is not running on this instance.
func (o *Orchestrator) Subscribe(jobID string) (events <-chan JobEvent, unsubscribe func(), ok bool) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	job, found := o.jobs[jobID]
	if !found {
		return nil, func() {}, false
	}

	ch := make(chan JobEvent, subscriberBuffer)
	ch <- JobEvent{JobID: jobID, Type: JobEventStatus, Status: job.Status}
	if job.Percent > 0 {
		ch <- JobEvent{JobID: jobID, Type: JobEventProgress, Percent: job.Percent}
	}

	id := job.nextSub
	job.nextSub++
	job.subs[id] = ch

	return ch, func() {
		o.jobsMu.Lock()
		defer o.jobsMu.Unlock()
		if j, ok := o.jobs[jobID]; ok {
			if c, ok := j.subs[id]; ok {
				close(c)
				delete(j.subs, id)
			}
		}
	}, true
}

// GetJob returns a copy of an in-flight job, or nil.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	cp.cancel = nil
	cp.subs = nil
	return &cp
}

// ActiveJobs lists the in-flight jobs.
func (o *Orchestrator) ActiveJobs() []Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	out := make([]Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		cp.cancel = nil
		cp.subs = nil
		out = append(out, cp)
	}
	return out
}

// CancelJob aborts an in-flight clip. It reports whether the job was found.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.jobsMu.Lock()
	j, ok := o.jobs[jobID]
	var cancel context.CancelFunc
	if ok {
		cancel = j.cancel
	}
	o.jobsMu.Unlock()
	if cancel != nil {
		cancel()
	}
	return ok
}
