package worker

import (
	"testing"

	"github.com/buildforge/api/internal/model"
)

func TestMergeFiles(t *testing.T) {
	original := []model.ProjectFile{
		{Path: "a.go", Content: "old a"},
		{Path: "b.go", Content: "old b"},
	}
	changed := []model.ProjectFile{
		{Path: "b.go", Content: "new b"},
		{Path: "c.go", Content: "new c"},
	}

	merged, paths := mergeFiles(original, changed)

	if len(merged) != 3 {
		t.Fatalf("expected 3 files, got %d", len(merged))
	}
	byPath := map[string]string{}
	for _, f := range merged {
		byPath[f.Path] = f.Content
	}
	if byPath["a.go"] != "old a" {
		t.Errorf("untouched file changed: %q", byPath["a.go"])
	}
	if byPath["b.go"] != "new b" {
		t.Errorf("changed file not updated: %q", byPath["b.go"])
	}
	if byPath["c.go"] != "new c" {
		t.Errorf("new file missing: %q", byPath["c.go"])
	}

	if len(paths) != 2 || paths[0] != "b.go" || paths[1] != "c.go" {
		t.Errorf("unexpected changed paths: %v", paths)
	}
}

func TestParseProjectResponse(t *testing.T) {
	raw := "```json\n{\"files\": [{\"path\": \"main.go\", \"content\": \"package main\"}], \"summary\": \"done\"}\n```"

	files, summary, err := parseProjectResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(files) != 1 || files[0].Path != "main.go" {
		t.Errorf("unexpected files: %+v", files)
	}
	if summary != "done" {
		t.Errorf("unexpected summary: %q", summary)
	}
}

func TestParseProjectResponse_NoFiles(t *testing.T) {
	if _, _, err := parseProjectResponse(`{"files": [], "summary": "nothing"}`); err == nil {
		t.Error("expected an error for an empty file list")
	}
}

func TestParseProjectResponse_Garbage(t *testing.T) {
	if _, _, err := parseProjectResponse("sorry, I cannot do that"); err == nil {
		t.Error("expected an error for a non-JSON response")
	}
}
