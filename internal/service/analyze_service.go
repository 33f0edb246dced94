package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/buildforge/api/internal/client"
	"github.com/buildforge/api/internal/model"
	"github.com/buildforge/api/internal/security"
)

// AnalyzeService answers questions about a codebase synchronously.
type AnalyzeService struct {
	guard *security.Guard
	llm   *client.LLMClient
}

func NewAnalyzeService(guard *security.Guard, llm *client.LLMClient) *AnalyzeService {
	return &AnalyzeService{guard: guard, llm: llm}
}

const analyzeSystemPrompt = `You are a senior engineer reviewing a codebase.
Answer the user's question about the provided files concisely and concretely, referencing file paths where relevant.`

// Analyze screens the question and asks the LLM about the provided files.
func (s *AnalyzeService) Analyze(ctx context.Context, userID string, req *model.AnalyzeRequest) (*model.AnalyzeResponse, *model.RejectedResponse, error) {
	if !s.guard.FeatureEnabled(security.FeatureAnalysis) {
		return nil, &model.RejectedResponse{Reason: "Codebase analysis is temporarily disabled"}, nil
	}

	vr := s.guard.ValidateModificationRequest(ctx, userID, req.Question)
	if !vr.Valid {
		return nil, &model.RejectedResponse{Reason: vr.Reason}, nil
	}

	// Use mock response if client is not configured
	if !s.llm.IsConfigured() {
		return &model.AnalyzeResponse{Answer: mockAnalysis(req)}, nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nFiles:\n", vr.Sanitized)
	for _, f := range req.Files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Path, f.Content)
	}

	answer, err := s.llm.ChatCompletion(ctx, analyzeSystemPrompt, []client.ChatMessage{
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("AI analysis failed: %w", err)
	}

	return &model.AnalyzeResponse{Answer: answer}, nil, nil
}

func mockAnalysis(req *model.AnalyzeRequest) string {
	paths := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		paths = append(paths, f.Path)
	}
	return fmt.Sprintf("The codebase contains %d files (%s). Connect an LLM API key for a full analysis.",
		len(req.Files), strings.Join(paths, ", "))
}
