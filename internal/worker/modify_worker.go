package worker

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/buildforge/api/internal/client"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/queue"
	ws "github.com/buildforge/api/internal/websocket"
)

// Modifier processes code modification jobs
type Modifier struct {
	queue *queue.Queue
	llm   *client.LLMClient
	hub   *ws.Hub
}

// NewModifier creates a new modification worker
func NewModifier(q *queue.Queue, llm *client.LLMClient, hub *ws.Hub) *Modifier {
	return &Modifier{queue: q, llm: llm, hub: hub}
}

const modifySystemPrompt = `You are an expert engineer applying a requested change to an existing codebase.
Return every file you changed with its full new content. Do not return unchanged files.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

// Process runs one modification job over the payload's file set.
func (w *Modifier) Process(ctx context.Context, jobID string, payload model.JobPayload) (model.JobResult, error) {
	p, ok := payload.(model.ModificationPayload)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	log.Printf("Starting modification job: %s (repo %q, %d files)", jobID, p.RepoName, len(p.Files))
	w.progress(jobID, 20, "Planning changes...")

	changed, summary, err := w.modify(ctx, &p)
	if err != nil {
		w.hub.BroadcastError(jobID, "MODIFICATION_FAILED", err.Error())
		return nil, err
	}

	// Per-file ramp from 20% to 80%
	for i, f := range changed {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		pct := 20 + (i+1)*60/len(changed)
		w.progress(jobID, pct, fmt.Sprintf("Applying %s...", f.Path))
	}

	w.progress(jobID, 90, "Merging changes...")

	merged, paths := mergeFiles(p.Files, changed)
	result := model.ModificationResult{Files: merged, ChangedPaths: paths, Summary: summary}
	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Modification job %s completed, %d files changed", jobID, len(paths))
	return result, nil
}

func (w *Modifier) progress(jobID string, pct int, step string) {
	w.queue.UpdateProgress(jobID, pct, step)
	w.hub.BroadcastProgress(jobID, pct, model.JobStatusProcessing, step)
}

func (w *Modifier) modify(ctx context.Context, p *model.ModificationPayload) ([]model.ProjectFile, string, error) {
	// Use mock output if the client is not configured
	if !w.llm.IsConfigured() {
		return mockModification(p)
	}

	messages := []client.ChatMessage{
		{Role: "user", Content: buildModifyPrompt(p)},
	}

	response, err := w.llm.ChatCompletion(ctx, modifySystemPrompt, messages)
	if err != nil {
		return nil, "", fmt.Errorf("AI modification failed: %w", err)
	}

	return parseProjectResponse(response)
}

func buildModifyPrompt(p *model.ModificationPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", p.RepoName)
	fmt.Fprintf(&b, "Requested change: %s\n\nCurrent files:\n", p.Description)
	for _, f := range p.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Path, f.Content)
	}
	b.WriteString(`
Output as JSON: {"files": [{"path": "...", "content": "..."}], "summary": "..."}
Include only files that changed, each with its complete new content.`)
	return b.String()
}

// mergeFiles overlays changed files on the original set, appending files
// with new paths.
func mergeFiles(original, changed []model.ProjectFile) ([]model.ProjectFile, []string) {
	byPath := make(map[string]model.ProjectFile, len(changed))
	paths := make([]string, 0, len(changed))
	for _, f := range changed {
		byPath[f.Path] = f
		paths = append(paths, f.Path)
	}

	merged := make([]model.ProjectFile, 0, len(original)+len(changed))
	for _, f := range original {
		if updated, ok := byPath[f.Path]; ok {
			merged = append(merged, updated)
			delete(byPath, f.Path)
			continue
		}
		merged = append(merged, f)
	}
	for _, f := range changed {
		if _, stillNew := byPath[f.Path]; stillNew {
			merged = append(merged, f)
		}
	}
	return merged, paths
}

// mockModification appends a change log entry so the pipeline works end to
// end without an API key.
func mockModification(p *model.ModificationPayload) ([]model.ProjectFile, string, error) {
	entry := fmt.Sprintf("- %s\n", p.Description)

	var changed model.ProjectFile
	found := false
	for _, f := range p.Files {
		if f.Path == "CHANGES.md" {
			changed = model.ProjectFile{Path: f.Path, Content: f.Content + entry}
			found = true
			break
		}
	}
	if !found {
		changed = model.ProjectFile{Path: "CHANGES.md", Content: "# Changes\n\n" + entry}
	}

	summary := fmt.Sprintf("Recorded requested change to %s.", p.RepoName)
	return []model.ProjectFile{changed}, summary, nil
}
