package model

import "time"

// Job represents a background job in the system
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Payload     JobPayload `json:"-"`
	Result      JobResult  `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Job types
type JobType string

const (
	JobTypeGeneration   JobType = "code_generation"
	JobTypeModification JobType = "code_modification"
)

// Job status
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPayload is implemented by every payload variant. The queue only ever
// passes a payload through to the work function registered for its type.
type JobPayload interface {
	JobType() JobType
}

// JobResult is implemented by every result variant.
type JobResult interface {
	JobType() JobType
}

// ChatTurn is one message of prior conversation context for generation
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ProjectFile is a single file of a generated or modified project
type ProjectFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GenerationPayload contains the data for a code generation job
type GenerationPayload struct {
	ProjectName         string     `json:"projectName"`
	Description         string     `json:"description"`
	TemplateID          *string    `json:"templateId"`
	ConversationHistory []ChatTurn `json:"conversationHistory"`
}

func (GenerationPayload) JobType() JobType { return JobTypeGeneration }

// ModificationPayload contains the data for a code modification job
type ModificationPayload struct {
	Description string        `json:"description"`
	Files       []ProjectFile `json:"files"`
	RepoName    string        `json:"repoName"`
	UserID      string        `json:"userId"`
	ProjectID   string        `json:"projectId"`
}

func (ModificationPayload) JobType() JobType { return JobTypeModification }

// GenerationResult is the output of a completed generation job
type GenerationResult struct {
	Files   []ProjectFile `json:"files"`
	Summary string        `json:"summary"`
}

func (GenerationResult) JobType() JobType { return JobTypeGeneration }

// ModificationResult is the output of a completed modification job
type ModificationResult struct {
	Files        []ProjectFile `json:"files"`
	ChangedPaths []string      `json:"changedPaths"`
	Summary      string        `json:"summary"`
}

func (ModificationResult) JobType() JobType { return JobTypeModification }
