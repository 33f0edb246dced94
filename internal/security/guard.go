package security

import (
	"context"
	"regexp"
	"strings"

	"github.com/buildforge/api/internal/config"
	"github.com/buildforge/api/internal/model"
)

const (
	// MaxPromptLength is the hard cap applied by Sanitize.
	MaxPromptLength = 10000
	// MinRequestLength is the minimum trimmed length of a sanitized request.
	MinRequestLength = 10
)

// Fixed user-facing refusal messages. These never carry internal detail.
const (
	reasonJailbreak = "Your request could not be processed. Please rephrase it as a plain description of the change you want."
	reasonTooShort  = "Please describe your request in at least 10 characters."
)

// Verdict is the result of screening one input string. It is produced and
// consumed synchronously and never persisted.
type Verdict struct {
	IsJailbreak bool     `json:"isJailbreak"`
	Severity    Severity `json:"severity"`
	MatchedRule string   `json:"matchedPattern,omitempty"`
}

// ValidationResult is the outcome of validating a generation/modification
// request.
type ValidationResult struct {
	Valid     bool   `json:"isValid"`
	Sanitized string `json:"sanitized"`
	Reason    string `json:"reason,omitempty"`
}

// Guard screens free-text user input before it reaches the LLM. It is a
// pattern-matching heuristic, not a semantic classifier: it sits in front of
// the model as one layer, not as a hard security boundary.
type Guard struct {
	features config.FeatureConfig
	recorder Recorder
}

// NewGuard creates a guard. recorder may be nil, in which case events are
// dropped.
func NewGuard(features config.FeatureConfig, recorder Recorder) *Guard {
	return &Guard{features: features, recorder: recorder}
}

// FeatureEnabled reports whether a job type's feature kill switch is off.
func (g *Guard) FeatureEnabled(feature string) bool {
	switch feature {
	case string(model.JobTypeGeneration):
		return !g.features.DisableGeneration
	case string(model.JobTypeModification):
		return !g.features.DisableModification
	case FeatureAnalysis:
		return !g.features.DisableAnalysis
	}
	return true
}

// FeatureAnalysis is the rate-limit/kill-switch name for synchronous
// codebase analysis.
const FeatureAnalysis = "codebase_analysis"

// DetectJailbreak evaluates the text against the jailbreak rules, then the
// suspicious rules. The first matching rule is reported.
func (g *Guard) DetectJailbreak(text string) Verdict {
	for _, r := range jailbreakRules {
		if r.Pattern.MatchString(text) {
			return Verdict{IsJailbreak: true, Severity: r.Severity, MatchedRule: r.ID}
		}
	}
	for _, r := range suspiciousRules {
		if r.Pattern.MatchString(text) {
			return Verdict{IsJailbreak: false, Severity: r.Severity, MatchedRule: r.ID}
		}
	}
	return Verdict{IsJailbreak: false, Severity: SeverityNone}
}

// Marker rewrites applied by Sanitize. Content is preserved; only the
// claimed role is neutralized.
var markerRewrites = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile("(?i)```\\s*system\\b"), "```user"},
	{regexp.MustCompile(`(?i)\[\s*system\s*\]`), "[USER]"},
	{regexp.MustCompile(`(?i)<\|im_start\|>\s*system\b`), "<|im_start|>user"},
	{regexp.MustCompile(`(?i)<<\s*sys\s*>>`), "<<USER>>"},
	{regexp.MustCompile(`(?i)###\s*system\b`), "### USER"},
}

// Sanitize rewrites prompt-delimiter role markers to their user equivalent,
// collapses excessive verbatim repetition, and clips the result to
// MaxPromptLength characters. It is deterministic and has no side effects.
func (g *Guard) Sanitize(text string) string {
	for _, m := range markerRewrites {
		text = m.pattern.ReplaceAllString(text, m.repl)
	}
	text = collapseRepeats(text)
	return truncate(text, MaxPromptLength)
}

// collapseRepeats truncates any unit of at least 10 characters that repeats
// 6 or more times consecutively down to 3 repeats. Unit length is capped at
// 128 bytes.
func collapseRepeats(s string) string {
	const (
		minUnit     = 10
		maxUnit     = 128
		minRepeats  = 6
		keepRepeats = 3
	)

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		limit := (len(s) - i) / minRepeats
		if limit > maxUnit {
			limit = maxUnit
		}

		collapsed := false
		for l := minUnit; l <= limit; l++ {
			unit := s[i : i+l]
			n := 1
			for i+(n+1)*l <= len(s) && s[i+n*l:i+(n+1)*l] == unit {
				n++
			}
			if n >= minRepeats {
				for k := 0; k < keepRepeats; k++ {
					b.WriteString(unit)
				}
				i += n * l
				collapsed = true
				break
			}
		}
		if !collapsed {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// ValidateModificationRequest screens and cleans one request text. Jailbreak
// matches are refused with a fixed reason and none of the original text is
// passed through. Suspicious matches are recorded but allowed.
func (g *Guard) ValidateModificationRequest(ctx context.Context, userID, text string) ValidationResult {
	verdict := g.DetectJailbreak(text)
	if verdict.IsJailbreak {
		g.record(ctx, Event{
			UserID:    userID,
			EventType: EventJailbreakAttempt,
			Severity:  verdict.Severity,
			Details:   "matched rule: " + verdict.MatchedRule,
			Prompt:    text,
		})
		return ValidationResult{Valid: false, Reason: reasonJailbreak}
	}

	sanitized := g.Sanitize(text)
	if len(strings.TrimSpace(sanitized)) < MinRequestLength {
		return ValidationResult{Valid: false, Reason: reasonTooShort}
	}

	if verdict.Severity == SeverityMedium {
		g.record(ctx, Event{
			UserID:    userID,
			EventType: EventSuspiciousPattern,
			Severity:  verdict.Severity,
			Details:   "matched rule: " + verdict.MatchedRule,
			Prompt:    text,
		})
	}

	return ValidationResult{Valid: true, Sanitized: sanitized}
}

func (g *Guard) record(ctx context.Context, e Event) {
	if g.recorder == nil {
		return
	}
	g.recorder.Record(ctx, e)
}
