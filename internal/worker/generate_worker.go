package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/buildforge/api/internal/client"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	ws "github.com/buildforge/api/internal/websocket"
)

// Generator processes code generation jobs
type Generator struct {
	queue *queue.Queue
	llm   *client.LLMClient
	hub   *ws.Hub
}

// NewGenerator creates a new generation worker
func NewGenerator(q *queue.Queue, llm *client.LLMClient, hub *ws.Hub) *Generator {
	return &Generator{queue: q, llm: llm, hub: hub}
}

const generateSystemPrompt = `You are an expert full-stack engineer generating a complete, runnable project from a plain-language description.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

// Process runs one generation job. It reports planning at 20%, then ramps
// from 20% to 80% as files are produced.
func (w *Generator) Process(ctx context.Context, jobID string, payload model.JobPayload) (model.JobResult, error) {
	p, ok := payload.(model.GenerationPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	log.Printf("Starting generation job: %s (project %q)", jobID, p.ProjectName)
	w.progress(jobID, 20, "Planning project structure...")

	files, summary, err := w.generate(ctx, &p)
	if err != nil {
		w.hub.BroadcastError(jobID, "GENERATION_FAILED", err.Error())
		return nil, err
	}

	// Per-file ramp from 20% to 80%
	for i, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		pct := 20 + (i+1)*60/len(files)
		w.progress(jobID, pct, fmt.Sprintf("Writing %s...", f.Path))
	}

	w.progress(jobID, 90, "Finalizing project...")

	result := model.GenerationResult{Files: files, Summary: summary}
	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Generation job %s completed with %d files", jobID, len(files))
	return result, nil
}

func (w *Generator) progress(jobID string, pct int, step string) {
	w.queue.UpdateProgress(jobID, pct, step)
	w.hub.BroadcastProgress(jobID, pct, model.JobStatusProcessing, step)
}

func (w *Generator) generate(ctx context.Context, p *model.GenerationPayload) ([]model.ProjectFile, string, error) {
	// Use mock output if the client is not configured
	if !w.llm.IsConfigured() {
		files, summary := mockProject(p)
		return files, summary, nil
	}

	messages := make([]client.ChatMessage, 0, len(p.ConversationHistory)+1)
	for _, turn := range p.ConversationHistory {
		messages = append(messages, client.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, client.ChatMessage{Role: "user", Content: buildGeneratePrompt(p)})

	response, err := w.llm.ChatCompletion(ctx, generateSystemPrompt, messages)
	if err != nil {
		return nil, "", fmt.Errorf("AI generation failed: %w", err)
	}

	return parseProjectResponse(response)
}

func buildGeneratePrompt(p *model.GenerationPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a project named %q.\n", p.ProjectName)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	if p.TemplateID != nil && *p.TemplateID != "" {
		fmt.Fprintf(&b, "Base it on the %q template.\n", *p.TemplateID)
	}
	b.WriteString(`
Output as JSON: {"files": [{"path": "...", "content": "..."}], "summary": "..."}
Every file must be complete and the project must run as-is.`)
	return b.String()
}

// parseProjectResponse extracts the file list from an LLM response,
// tolerating a fenced code block around the JSON.
func parseProjectResponse(response string) ([]model.ProjectFile, string, error) {
	cleaned := strings.TrimSpace(response)
	if idx := strings.Index(cleaned, "{"); idx > 0 {
		cleaned = cleaned[idx:]
	}
	if idx := strings.LastIndex(cleaned, "}"); idx >= 0 {
		cleaned = cleaned[:idx+1]
	}

	var parsed struct {
		Files   []model.ProjectFile `json:"files"`
		Summary string              `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse AI response: %w", err)
	}
	if len(parsed.Files) == 0 {
		return nil, "", fmt.Errorf("AI response contained no files")
	}
	return parsed.Files, parsed.Summary, nil
}

// mockProject returns a deterministic scaffold so the pipeline works end to
// end without an API key.
func mockProject(p *model.GenerationPayload) ([]model.ProjectFile, string) {
	name := p.ProjectName
	files := []model.ProjectFile{
		{Path: "package.json", Content: fmt.Sprintf("{\n  \"name\": %q,\n  \"version\": \"0.1.0\",\n  \"private\": true\n}\n", strings.ToLower(name))},
		{Path: "src/index.tsx", Content: "import React from 'react';\nimport { createRoot } from 'react-dom/client';\nimport App from './App';\n\ncreateRoot(document.getElementById('root')!).render(<App />);\n"},
		{Path: "src/App.tsx", Content: fmt.Sprintf("export default function App() {\n  return <h1>%s</h1>;\n}\n", name)},
		{Path: "README.md", Content: fmt.Sprintf("# %s\n\n%s\n", name, p.Description)},
	}
	summary := fmt.Sprintf("Scaffolded %s with %d files.", name, len(files))
	return files, summary
}
