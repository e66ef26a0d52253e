package redact

// DefaultRules covers the credential shapes most likely to surface in
// collector output and failure reasons: self-identifying token prefixes
// need no keywords, generic assignments are gated on a nearby keyword.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "aws-access-key-id",
			Pattern: `\b(?:AKIA|ASIA|AGPA|AIDA|AROA|ANPA)[A-Z0-9]{16}\b`,
		},
		{
			ID:       "aws-secret-access-key",
			Pattern:  `(?i)aws[_-]?secret[_-]?(?:access[_-]?)?key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords: []string{"aws"},
		},
		{
			ID:      "github-token",
			Pattern: `\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:      "github-fine-grained-token",
			Pattern: `\bgithub_pat_[A-Za-z0-9_]{22,}\b`,
		},
		{
			ID:      "gitlab-token",
			Pattern: `\bglpat-[A-Za-z0-9\-]{20,}\b`,
		},
		{
			ID:      "slack-token",
			Pattern: `\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`,
		},
		{
			ID:      "anthropic-api-key",
			Pattern: `\bsk-ant-[A-Za-z0-9_\-]{32,}\b`,
		},
		{
			ID:      "openai-api-key",
			Pattern: `\bsk-[A-Za-z0-9]{40,}\b`,
		},
		{
			ID:      "stripe-key",
			Pattern: `\b(?:sk|pk)_(?:live|test)_[A-Za-z0-9]{24,}\b`,
		},
		{
			ID:      "npm-token",
			Pattern: `\bnpm_[A-Za-z0-9]{36}\b`,
		},
		{
			ID:      "jwt",
			Pattern: `\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`,
		},
		{
			ID:      "connection-url-credentials",
			Pattern: `(?i)\b(?:postgres|postgresql|mysql|mongodb|redis|amqp|nats)://[^:/\s]+:[^@\s]+@[^\s]+`,
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)\bbearer\s+[A-Za-z0-9_\-.=]{20,}`,
			Keywords: []string{"bearer"},
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)\bapi[_-]?key\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"api"},
		},
		{
			ID:       "generic-password",
			Pattern:  `(?i)\b(?:password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"password", "passwd", "pwd"},
		},
		{
			ID:      "private-key-block",
			Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
		},
	}
}
