package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultNbSources  = 10
	MinNbSources      = 1
	MaxNbSources      = 50
	MinQuestionLength = 3
	MaxQuestionLength = 2000
)

// Patterns rejected in user questions. Matched case-insensitively as
// plain substrings.
var suspiciousPatterns = []string{"<script", "javascript:", "onerror=", "onload="}

// AskRequest is one question against the corpus. SessionID scopes the
// conversation history used for query rewriting and generation.
type AskRequest struct {
	SessionID string         `json:"session_id"`
	Question  string         `json:"question"`
	Config    PipelineConfig `json:"config"`
}

// PipelineConfig carries the per-request stage toggles and retrieval
// width. Zero value is not usable; call Normalize first.
type PipelineConfig struct {
	Subjects       []string `json:"subjects,omitempty"`
	NbSources      int      `json:"nb_sources"`
	EnableRewrite  bool     `json:"enable_rewrite"`
	EnableHybrid   bool     `json:"enable_hybrid"`
	EnableRerank   bool     `json:"enable_rerank"`
	EnableCompress bool     `json:"enable_compress"`
}

// DefaultPipelineConfig mirrors the toggles the web UI starts with:
// rewrite and hybrid on, rerank and compress off.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NbSources:     DefaultNbSources,
		EnableRewrite: true,
		EnableHybrid:  true,
	}
}

// Normalize fills the retrieval width when the caller left it unset.
func (c *PipelineConfig) Normalize() {
	if c.NbSources == 0 {
		c.NbSources = DefaultNbSources
	}
}

// Validate rejects out-of-range widths and unknown subjects. It never
// mutates the config.
func (c PipelineConfig) Validate(knownSubjects []string) error {
	if c.NbSources < MinNbSources {
		return fmt.Errorf("%w: nombre de sources doit etre au moins %d", ErrInvalidInput, MinNbSources)
	}
	if c.NbSources > MaxNbSources {
		return fmt.Errorf("%w: nombre de sources maximum: %d", ErrInvalidInput, MaxNbSources)
	}
	if len(c.Subjects) > 0 && len(knownSubjects) > 0 {
		allowed := make(map[string]struct{}, len(knownSubjects))
		for _, s := range knownSubjects {
			allowed[s] = struct{}{}
		}
		for _, s := range c.Subjects {
			if _, ok := allowed[s]; !ok {
				return fmt.Errorf("%w: matiere inconnue: %s", ErrInvalidInput, s)
			}
		}
	}
	return nil
}

// ValidateQuestion enforces length bounds and rejects markup injection
// attempts. The returned question is whitespace-trimmed.
func ValidateQuestion(question string) (string, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return "", fmt.Errorf("%w: question vide", ErrInvalidInput)
	}
	if len([]rune(q)) < MinQuestionLength {
		return "", fmt.Errorf("%w: question trop courte (minimum %d caracteres)", ErrInvalidInput, MinQuestionLength)
	}
	if len([]rune(q)) > MaxQuestionLength {
		return "", fmt.Errorf("%w: question trop longue (maximum %d caracteres)", ErrInvalidInput, MaxQuestionLength)
	}
	lower := strings.ToLower(q)
	for _, p := range suspiciousPatterns {
		if strings.Contains(lower, p) {
			return "", fmt.Errorf("%w: question contient des caracteres suspects", ErrInvalidInput)
		}
	}
	return q, nil
}
