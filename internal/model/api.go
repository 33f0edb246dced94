package model

import "time"

// GenerateRequest represents the request to start a code generation job
type GenerateRequest struct {
	ProjectName         string     `json:"projectName" validate:"required,min=1,max=100"`
	Description         string     `json:"description" validate:"required"`
	TemplateID          *string    `json:"templateId" validate:"omitempty,max=64"`
	ConversationHistory []ChatTurn `json:"conversationHistory" validate:"omitempty,max=50,dive"`
}

// ModifyRequest represents the request to start a code modification job
type ModifyRequest struct {
	Description string        `json:"description" validate:"required"`
	Files       []ProjectFile `json:"files" validate:"required,min=1,max=200,dive"`
	RepoName    string        `json:"repoName" validate:"required,max=200"`
	ProjectID   string        `json:"projectId" validate:"required,uuid"`
}

// AnalyzeRequest represents the request for a synchronous codebase analysis
type AnalyzeRequest struct {
	Question string        `json:"question" validate:"required,min=3"`
	Files    []ProjectFile `json:"files" validate:"required,min=1,max=200,dive"`
}

// AnalyzeResponse represents the analysis answer
type AnalyzeResponse struct {
	Answer string `json:"answer"`
}

// JobAcceptedResponse represents the response when a job is queued
type JobAcceptedResponse struct {
	JobID     string    `json:"jobId"`
	Type      JobType   `json:"type"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse represents the poll response for a job
type JobStatusResponse struct {
	ID          string    `json:"id"`
	Type        JobType   `json:"type"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Result      JobResult `json:"result,omitempty"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RejectedResponse is returned when the prompt guard refuses a request
type RejectedResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
}
