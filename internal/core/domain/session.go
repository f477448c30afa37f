package domain

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation, user or assistant.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MaxHistoryTurns bounds how many turns a session keeps. Older turns
// are evicted pairwise so a user turn never loses its answer.
const MaxHistoryTurns = 20

// Exchange is one completed question/answer pair as persisted by the
// exchange log.
type Exchange struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	RewrittenQuery string    `json:"rewritten_query"`
	Steps          []string  `json:"steps"`
	NumDocs        int       `json:"num_docs"`
	RetrievalTime  float64   `json:"retrieval_time"`
	TotalTime      float64   `json:"total_time"`
	CreatedAt      time.Time `json:"created_at"`
}
