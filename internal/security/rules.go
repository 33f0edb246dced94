package security

import "regexp"

// Severity of a detection verdict
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rule is one detection pattern. Rules are evaluated in table order and the
// first match wins.
type Rule struct {
	ID       string
	Category string
	Severity Severity
	Pattern  *regexp.Regexp
}

// jailbreakRules block a request outright. The patterns require fairly
// specific phrasings so that ordinary engineering language ("ignore
// whitespace", "act as a proxy") does not trigger them.
var jailbreakRules = []Rule{
	{
		ID:       "instruction_override",
		Category: "prompt-injection",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?|directions?)`),
	},
	{
		ID:       "role_reassignment",
		Category: "prompt-injection",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(you\s+are\s+now\s+(a|an|the|in)\b|act\s+as\s+if\s+you\s+(are|were|have\s+no)|pretend\s+(to\s+be|you\s+are|you\s+have\s+no)|from\s+now\s+on\s+you\s+(are|will|must))`),
	},
	{
		ID:       "system_prompt_extraction",
		Category: "prompt-injection",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(reveal|show|print|repeat|output|display)\s+(me\s+)?(your|the)\s+(system\s+prompt|initial\s+instructions?|hidden\s+instructions?|original\s+prompt)`),
	},
	{
		ID:       "delimiter_injection",
		Category: "prompt-injection",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(\[\s*system\s*\]|<\|im_start\|>|<<\s*sys\s*>>|` + "```" + `\s*system\b|###\s*system\b)`),
	},
	{
		ID:       "malware_request",
		Category: "harmful-content",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(write|create|generate|build|make)\s+(me\s+)?(a\s+|an\s+|some\s+)?(malware|ransomware|keylogger|rootkit|spyware|botnet|virus\b|exploit\s+(for|that))`),
	},
	{
		ID:       "data_exfiltration",
		Category: "harmful-content",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(exfiltrate|leak|steal|harvest)\s+.{0,40}(api\s+keys?|secrets?|credentials?|passwords?|tokens?|environment\s+variables?)`),
	},
	{
		ID:       "encoding_obfuscation",
		Category: "obfuscation",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(decode\s+(this\s+)?and\s+(execute|run|follow|obey)|(execute|run|follow|obey)\s+the\s+(base64|rot13|hex)(-|\s)?(encoded|payload)|base64\s+decode\s+and)`),
	},
	{
		ID:       "language_smuggling",
		Category: "prompt-injection",
		Severity: SeverityHigh,
		Pattern:  regexp.MustCompile(`(?i)(ignoriere?\s+alle\s+vorherigen|ignorez\s+les\s+instructions|ignora\s+todas\s+las\s+instrucciones|translate\s+and\s+(follow|execute|obey))`),
	},
}

// suspiciousRules flag destructive-operation phrasing. They do not block;
// matches are logged and the request is allowed through.
var suspiciousRules = []Rule{
	{
		ID:       "mass_file_deletion",
		Category: "destructive-operation",
		Severity: SeverityMedium,
		Pattern:  regexp.MustCompile(`(?i)delete\s+(all|every)\s+(files?|folders?|directories|data)`),
	},
	{
		ID:       "sql_table_drop",
		Category: "destructive-operation",
		Severity: SeverityMedium,
		Pattern:  regexp.MustCompile(`(?i)drop\s+table\s+\S+`),
	},
	{
		ID:       "recursive_force_delete",
		Category: "destructive-operation",
		Severity: SeverityMedium,
		Pattern:  regexp.MustCompile(`(?i)\brm\s+-(rf|fr)\b`),
	},
	{
		ID:       "disk_format",
		Category: "destructive-operation",
		Severity: SeverityMedium,
		Pattern:  regexp.MustCompile(`(?i)(format\s+(the\s+)?(disk|drive|hard\s*drive|c:)|\bmkfs(\.\w+)?\b)`),
	},
}
