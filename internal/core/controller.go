package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wellness-chat/pkg"
)

// State is the lifecycle state of a Controller.
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateIdle
	StateAwaitingCompletion
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateIdle:
		return "idle"
	case StateAwaitingCompletion:
		return "awaiting_completion"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrEmptyInput     = errors.New("core: empty input")
	ErrBusy           = errors.New("core: another request is outstanding")
	ErrNotReady       = errors.New("core: session not started")
	ErrTerminated     = errors.New("core: session terminated")
	ErrAlreadyStarted = errors.New("core: session already started")
	// ErrRemoteHistory is returned by Resync when the store holds messages
	// this controller never loaded.  Nothing is written in that case.
	ErrRemoteHistory = errors.New("core: session store holds history that was never loaded")
)

// IdentityProvider resolves the durable session id of this device.
type IdentityProvider interface {
	Resolve() (pkg.SessionID, error)
	Invalidate() error
}

// SessionStore is the remote mirror of session transcripts.
type SessionStore interface {
	// GetSession returns the stored messages in order, or an empty slice
	// when the session is unknown.
	GetSession(ctx context.Context, id pkg.SessionID) ([]pkg.Message, error)
	SaveSession(ctx context.Context, id pkg.SessionID, messages []pkg.Message) error
	SaveMessage(ctx context.Context, id pkg.SessionID, m pkg.Message) error
	EndSession(ctx context.Context, id pkg.SessionID) error
}

// Completer generates the assistant reply for prompt given history.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []pkg.Turn) (string, error)
}

// Options tunes a Controller.  Zero values select defaults.
type Options struct {
	// MaxTurns bounds the context window; DefaultMaxTurns when zero.
	MaxTurns int
	// CompletionTimeout bounds each completion call; none when zero.
	CompletionTimeout time.Duration
	Reporter          Reporter
	Now               func() time.Time
	NewMessageID      func() string
}

// TurnResult is the outcome of one accepted submission.
type TurnResult struct {
	User  pkg.Message
	Reply pkg.Message
	// Recovered is true when the completion failed and Reply holds
	// CompletionErrorReply.
	Recovered bool
	// Notice is a transient message for the patient, empty when none.
	Notice string
}

// TerminateResult is the outcome of Terminate.
type TerminateResult struct {
	SessionID pkg.SessionID
	// Purged is false when the remote store could not delete the session.
	Purged bool
	Notice string
}

// Controller owns the lifecycle of one chat session: identity resolution,
// hydration from the remote store, one turn at a time of
// append → persist → complete → append → persist, and teardown.
//
// Submissions are single-flight.  A submission arriving while a completion
// is outstanding is rejected with ErrBusy, never queued.
type Controller struct {
	identity  IdentityProvider
	store     SessionStore
	completer Completer
	opts      Options

	transcript *Transcript

	mu        sync.Mutex
	state     State
	syncing   bool
	// detached is set when hydration failed.  The remote record was never
	// read, so nothing is written to it until Resync confirms it is empty.
	detached  bool
	sessionID pkg.SessionID
	// writes tracks remote writes that Terminate must wait for, so a late
	// SaveMessage cannot resurrect a purged session.
	writes sync.WaitGroup
}

// NewController wires a Controller.  Call Start before submitting.
func NewController(identity IdentityProvider, store SessionStore, completer Completer, opts Options) *Controller {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewMessageID == nil {
		opts.NewMessageID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}
	return &Controller{
		identity:   identity,
		store:      store,
		completer:  completer,
		opts:       opts,
		transcript: NewTranscript(),
	}
}

// Start resolves the session id and hydrates the transcript.  A remote
// fetch failure is reported and replaced by a local greeting, and the
// session continues in memory only until a successful Resync.  Only a
// failure of the local identity store is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateUninitialized:
	case StateTerminating, StateTerminated:
		c.mu.Unlock()
		return ErrTerminated
	default:
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateHydrating
	c.mu.Unlock()

	id, err := c.identity.Resolve()
	if err != nil {
		c.setState(StateUninitialized)
		return fmt.Errorf("core: resolve session: %w", err)
	}
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()

	stored, err := c.store.GetSession(ctx, id)
	switch {
	case err != nil:
		c.report(HydrationFailure, id, "", err)
		seed := c.newMessage(pkg.RoleAssistant, SeedGreeting)
		c.transcript.Initialize([]pkg.Message{seed})
		c.transcript.MarkUnsynced(seed.ID)
		c.mu.Lock()
		c.detached = true
		c.mu.Unlock()
	case len(stored) > 0:
		c.transcript.Initialize(stored)
	default:
		seed := c.newMessage(pkg.RoleAssistant, SeedGreeting)
		c.transcript.Initialize([]pkg.Message{seed})
		c.writes.Add(1)
		if err := c.persist(ctx, id, seed); err != nil {
			c.report(PersistFailure, id, seed.ID, err)
		}
	}

	c.setState(StateIdle)
	return nil
}

// Submit runs one patient turn.  Whitespace-only input is rejected with
// ErrEmptyInput without any side effect.  A failed completion is recovered:
// the error reply is appended and persisted, the result carries a notice and
// the session returns to idle.
func (c *Controller) Submit(ctx context.Context, input string) (*TurnResult, error) {
	prompt := strings.TrimSpace(input)
	if prompt == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state = StateAwaitingCompletion
	id := c.sessionID
	user := c.newMessage(pkg.RoleUser, prompt)
	snapshot := c.transcript.Append(user)
	c.writes.Add(1)
	c.mu.Unlock()

	// The user message is persisted while the completion runs; both finish
	// before the reply is written so the remote order matches the local one.
	var g errgroup.Group
	g.Go(func() error {
		return c.persist(ctx, id, user)
	})

	window := BuildContextWindow(snapshot, c.opts.MaxTurns)
	text, err := c.complete(ctx, prompt, window)
	if perr := g.Wait(); perr != nil {
		c.report(PersistFailure, id, user.ID, perr)
	}

	result := &TurnResult{User: user}
	switch {
	case err != nil:
		c.report(CompletionFailure, id, "", err)
		text = CompletionErrorReply
		result.Recovered = true
		result.Notice = NoticeCompletionFailed
	case strings.TrimSpace(text) == "":
		text = FallbackReply
	}

	c.mu.Lock()
	if c.state != StateAwaitingCompletion {
		// Terminated while the completion was in flight.
		c.mu.Unlock()
		return nil, ErrTerminated
	}
	reply := c.newMessage(pkg.RoleAssistant, text)
	c.transcript.Append(reply)
	c.writes.Add(1)
	c.mu.Unlock()

	if err := c.persist(ctx, id, reply); err != nil {
		c.report(PersistFailure, id, reply.ID, err)
	}

	c.mu.Lock()
	if c.state == StateAwaitingCompletion {
		c.state = StateIdle
	}
	c.mu.Unlock()

	result.Reply = reply
	return result, nil
}

// Resync retries the remote writes of unsynced messages and returns how
// many reached the store.  There is no automatic retry; callers decide when
// to resync.
//
// Messages are replayed in order through the idempotent SaveMessage and
// replay stops at the first failure.  After a hydration failure the remote
// record is fetched first: an empty record is initialised with the whole
// transcript and remote writes resume, while a non-empty one is left
// untouched and ErrRemoteHistory is returned.
func (c *Controller) Resync(ctx context.Context) (int, error) {
	c.mu.Lock()
	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.syncing = true
	id := c.sessionID
	detached := c.detached
	c.writes.Add(1)
	c.mu.Unlock()

	defer func() {
		c.writes.Done()
		c.mu.Lock()
		c.syncing = false
		c.mu.Unlock()
	}()

	if detached {
		return c.reattach(ctx, id)
	}

	var synced []string
	defer func() { c.transcript.MarkSynced(synced...) }()
	for _, m := range c.transcript.Unsynced() {
		if err := c.store.SaveMessage(ctx, id, m); err != nil {
			c.report(PersistFailure, id, m.ID, err)
			return len(synced), fmt.Errorf("core: resync: %w", err)
		}
		synced = append(synced, m.ID)
	}
	return len(synced), nil
}

// reattach ends the in-memory-only mode entered on hydration failure.
func (c *Controller) reattach(ctx context.Context, id pkg.SessionID) (int, error) {
	remote, err := c.store.GetSession(ctx, id)
	if err != nil {
		c.report(HydrationFailure, id, "", err)
		return 0, fmt.Errorf("core: resync: %w", err)
	}
	if len(remote) > 0 {
		return 0, ErrRemoteHistory
	}

	pending := c.transcript.Unsynced()
	if err := c.store.SaveSession(ctx, id, c.transcript.All()); err != nil {
		c.report(PersistFailure, id, "", err)
		return 0, fmt.Errorf("core: resync: %w", err)
	}
	ids := make([]string, len(pending))
	for i, m := range pending {
		ids[i] = m.ID
	}
	c.transcript.MarkSynced(ids...)

	c.mu.Lock()
	c.detached = false
	c.mu.Unlock()
	return len(pending), nil
}

// Terminate ends the session: the transcript is dropped, the remote record
// purged and the local id invalidated.  A failed purge is reported and
// surfaced through the result notice; the local id is erased regardless.
// A completion still in flight finishes, but its reply is discarded.
func (c *Controller) Terminate(ctx context.Context) (*TerminateResult, error) {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateAwaitingCompletion:
	case StateTerminating, StateTerminated:
		c.mu.Unlock()
		return nil, ErrTerminated
	default:
		c.mu.Unlock()
		return nil, ErrNotReady
	}
	c.state = StateTerminating
	id := c.sessionID
	c.transcript.Reset()
	c.mu.Unlock()

	c.writes.Wait()

	result := &TerminateResult{SessionID: id, Purged: true, Notice: NoticeSessionClosed}
	if err := c.store.EndSession(ctx, id); err != nil {
		c.report(TerminationFailure, id, "", err)
		result.Purged = false
		result.Notice = NoticeTerminationFailed
	}

	var invErr error
	if err := c.identity.Invalidate(); err != nil {
		invErr = fmt.Errorf("core: invalidate session: %w", err)
	}
	c.setState(StateTerminated)
	return result, invErr
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the resolved session id, empty before Start.
func (c *Controller) SessionID() pkg.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Transcript returns a snapshot of the session messages.
func (c *Controller) Transcript() []pkg.Message {
	return c.transcript.All()
}

// Detached reports whether remote writes are suspended after a hydration
// failure.
func (c *Controller) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// Unsynced returns the messages not yet mirrored remotely.
func (c *Controller) Unsynced() []pkg.Message {
	return c.transcript.Unsynced()
}

// SuggestedQueries returns precomposed first questions while the transcript
// holds nothing but the greeting, and nil afterwards.
func (c *Controller) SuggestedQueries() []string {
	switch c.State() {
	case StateIdle, StateAwaitingCompletion:
	default:
		return nil
	}
	if c.transcript.Len() > 1 {
		return nil
	}
	return append([]string(nil), suggestedQueries...)
}

// readyLocked reports whether a new request may start.  c.mu must be held.
func (c *Controller) readyLocked() error {
	switch c.state {
	case StateIdle:
		if c.syncing {
			return ErrBusy
		}
		return nil
	case StateAwaitingCompletion:
		return ErrBusy
	case StateTerminating, StateTerminated:
		return ErrTerminated
	}
	return ErrNotReady
}

func (c *Controller) complete(ctx context.Context, prompt string, window []pkg.Turn) (string, error) {
	if c.opts.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CompletionTimeout)
		defer cancel()
	}
	return c.completer.Complete(ctx, prompt, window)
}

// persist writes m remotely and releases the write slot taken by the caller.
// A failed or skipped write leaves m visible but unsynced.  Detached
// sessions skip the write and return nil.
func (c *Controller) persist(ctx context.Context, id pkg.SessionID, m pkg.Message) error {
	defer c.writes.Done()
	c.mu.Lock()
	detached := c.detached
	c.mu.Unlock()
	if detached {
		c.transcript.MarkUnsynced(m.ID)
		return nil
	}
	if err := c.store.SaveMessage(ctx, id, m); err != nil {
		c.transcript.MarkUnsynced(m.ID)
		return err
	}
	return nil
}

func (c *Controller) newMessage(role pkg.Role, content string) pkg.Message {
	return pkg.Message{
		ID:        c.opts.NewMessageID(),
		Content:   content,
		Role:      role,
		Timestamp: c.opts.Now().UTC(),
	}
}

func (c *Controller) report(kind EventKind, id pkg.SessionID, messageID string, err error) {
	c.opts.Reporter.Report(&Event{Kind: kind, SessionID: id, MessageID: messageID, Err: err})
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
