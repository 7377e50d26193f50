package pkg

import "time"

// SessionID identifies one chat session.  It is minted once per device and
// kept until the patient explicitly ends the conversation.
type SessionID string

// Role describes who authored a message.  Only two roles exist: the patient
// (user) and the wellness assistant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry.  Messages are immutable once created;
// IDs are time-ordered so sorting by ID matches creation order.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is the stripped form of a Message sent to the completion service as
// conversational context.  IDs and timestamps never leave the client.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionPayload is the body of session store reads and bulk writes.
type SessionPayload struct {
	Messages []Message `json:"messages"`
}

// CompletionRequest asks the completion service for a reply to Prompt given
// the bounded History.
type CompletionRequest struct {
	Prompt  string `json:"prompt"`
	History []Turn `json:"history"`
}

// CompletionResponse carries the generated text.
type CompletionResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is returned by the HTTP API for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
