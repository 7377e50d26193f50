// Package transport holds the boundary between the chat session controller
// and its two external collaborators, the session store and the completion
// service.  Adapters translate calls into wire or library calls and carry
// no chat logic of their own; every call is attempted at most once.
package transport

import (
	"context"

	"wellness-chat/internal/llm"
	"wellness-chat/pkg"
)

// SessionBackend is the storage the Direct adapter forwards to.
// *db.Repository satisfies it.
type SessionBackend interface {
	GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error)
	SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error
	SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error
	EndSession(ctx context.Context, id pkg.SessionID) error
}

// Direct serves both collaborators in-process: storage goes straight to a
// SessionBackend and completions to an llm.Client.
type Direct struct {
	Store        SessionBackend
	LLM          llm.Client
	SystemPrompt string
}

// NewDirect constructs a Direct adapter.
func NewDirect(store SessionBackend, client llm.Client, systemPrompt string) *Direct {
	return &Direct{Store: store, LLM: client, SystemPrompt: systemPrompt}
}

func (d *Direct) GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error) {
	return d.Store.GetSession(ctx, id)
}

func (d *Direct) SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error {
	return d.Store.SaveSession(ctx, id, messages)
}

func (d *Direct) SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error {
	return d.Store.SaveMessage(ctx, id, m)
}

func (d *Direct) EndSession(ctx context.Context, id pkg.SessionID) error {
	return d.Store.EndSession(ctx, id)
}

// Complete sends the system prompt, history and prompt to the model.
func (d *Direct) Complete(ctx context.Context, prompt string, history []pkg.Turn) (string, error) {
	return d.LLM.Chat(ctx, llm.Conversation(d.SystemPrompt, history, prompt))
}
