package model

import (
	"strings"

	"github.com/google/uuid"
)

const (
	AppName = "sumflash"

	LogLevelInfo  = 0
	LogLevelDebug = 1
	LogLevelTrace = 2
)

// UpdateRequest is the work order for a single firmware update run.
//
// The request is immutable for the duration of one run.
type UpdateRequest struct {
	// ImageURL points to the SPP ISO carrying the SUM utility and firmware packages.
	ImageURL string

	// Checksum is the expected checksum of the ISO, prefixed with the
	// digest type - md5sum: or sha256:, md5 is assumed when the prefix is absent.
	Checksum string

	// Components restricts the update to the listed component identifiers,
	// when empty all components on the server are updated.
	Components []string

	// Server BMC attributes
	BmcAddress  string
	BmcUsername string
	BmcPassword string

	// Vendor is the server manufacturer, it determines the bmclib driver in use.
	Vendor string
}

// ParseComponents splits a comma separated component list from the work order
// into component identifiers, dropping surrounding whitespace and empty entries.
func ParseComponents(csv string) []string {
	var components []string

	for _, c := range strings.Split(csv, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		components = append(components, c)
	}

	return components
}

// TaskState identifies where a task is in its lifecycle.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateActive    TaskState = "active"
	StateSucceeded TaskState = "succeeded"
	StateFailed    TaskState = "failed"
)

// Task holds the state for one update run.
type Task struct {
	ID uuid.UUID

	Request *UpdateRequest

	State TaskState

	// Summary is the classified outcome of the SUM run,
	// set when the task completes.
	Summary string

	Status *StatusRecord
}

// NewTask initializes a task for the given update request.
func NewTask(request *UpdateRequest) *Task {
	return &Task{
		ID:      uuid.New(),
		Request: request,
		State:   StatePending,
		Status:  NewStatusRecord("initialized task"),
	}
}

func (t *Task) SetState(state TaskState) {
	t.State = state
}

// StatusRecord records task progress as it moves through the update sequence.
type StatusRecord struct {
	entries []string
}

func NewStatusRecord(entry string) *StatusRecord {
	sr := &StatusRecord{}
	sr.Append(entry)

	return sr
}

func (sr *StatusRecord) Append(entry string) {
	if entry == "" {
		return
	}

	sr.entries = append(sr.entries, entry)
}

func (sr *StatusRecord) Last() string {
	if len(sr.entries) == 0 {
		return ""
	}

	return sr.entries[len(sr.entries)-1]
}

func (sr *StatusRecord) Entries() []string {
	return sr.entries
}
