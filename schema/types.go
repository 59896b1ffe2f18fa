package schema

// JobID identifies one execution job.
type JobID string

// ThemeName identifies an editor theme.
type ThemeName string

// Language identifies the editor language of an active-time sample.
type Language string

// DateKey is a calendar date formatted as YYYY-MM-DD in local time.
type DateKey string

// DateLayout is the layout used for DateKey values.
const DateLayout = "2006-01-02"

// JobState is the lifecycle state of an execution job.
type JobState string

const (
	// JobRunning means the process is alive.
	JobRunning JobState = "running"
	// JobRejected means no process was spawned.
	JobRejected JobState = "rejected"
	// JobFailed means the process could not be started.
	JobFailed JobState = "failed"
	// JobExited means the process ran and exited.
	JobExited JobState = "exited"
)
