package queue

import (
	"time"

	"discburn-agent/internal/track"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// CommandType represents the kind of authoring job to execute
type CommandType string

const (
	CmdBurn  CommandType = "burn"  // write the session to the destination medium
	CmdImage CommandType = "image" // write the session to an image file
	CmdBlank CommandType = "blank" // erase the destination medium
	CmdCheck CommandType = "check" // dry run to determine the output size
)

// Command describes a queued authoring job
type Command struct {
	Type CommandType `json:"type"`

	// Input description
	InputKind   string             `json:"input_kind"` // data, stream, image, disc
	InputFS     track.FSFlags      `json:"input_fs,omitempty"`
	InputStream track.StreamFormat `json:"input_stream,omitempty"`
	InputFormat track.ImageFormat  `json:"input_format,omitempty"`
	InputMedia  track.Media        `json:"input_media,omitempty"`
	SourceDrive string             `json:"source_drive,omitempty"`

	// Destination
	DestDrive  string            `json:"dest_drive,omitempty"`
	DestFile   string            `json:"dest_file,omitempty"`
	DestFormat track.ImageFormat `json:"dest_format,omitempty"`

	Flags track.BurnFlag `json:"flags"`
}

// InputType resolves the command input description to a track type
func (c Command) InputType() track.Type {
	switch c.InputKind {
	case "data":
		return track.NewData(c.InputFS)
	case "stream":
		return track.NewStream(c.InputStream)
	case "image":
		return track.NewImage(c.InputFormat)
	case "disc":
		return track.NewDisc(c.InputMedia)
	default:
		return track.NewNone()
	}
}

// Job represents a job in the queue
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Command     Command    `json:"command"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Event represents a single event in a job's execution
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // "info", "progress", "error", "warning"
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
}

// JobResponse represents a job in API responses
type JobResponse struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Command     Command    `json:"command"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	Events      []Event    `json:"events"`
}

// ListJobsResponse is the response for listing jobs
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}
