package runner

import (
	"sync"

	"pkt.systems/devdeck/schema"
)

// Job is one execution of a user file.
type Job struct {
	id   schema.JobID
	path string
	plan Plan

	mu       sync.Mutex
	state    schema.JobState
	exitCode int
	exited   bool
	err      error
	done     chan struct{}
}

func newJob(id schema.JobID, path string) *Job {
	return &Job{
		id:    id,
		path:  path,
		state: schema.JobRunning,
		done:  make(chan struct{}),
	}
}

// ID returns the job identifier.
func (j *Job) ID() schema.JobID { return j.id }

// Path returns the absolute file path.
func (j *Job) Path() string { return j.path }

// Plan returns the resolved invocation. It is empty for rejected jobs.
func (j *Job) Plan() Plan { return j.plan }

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// State returns the current lifecycle state.
func (j *Job) State() schema.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ExitCode returns the exit code once the process has exited.
func (j *Job) ExitCode() (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode, j.exited
}

// Err returns why the job was rejected or failed to start.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) finish(state schema.JobState, exitCode int, exited bool, err error) {
	j.mu.Lock()
	j.state = state
	j.exitCode = exitCode
	j.exited = exited
	j.err = err
	j.mu.Unlock()
	close(j.done)
}
