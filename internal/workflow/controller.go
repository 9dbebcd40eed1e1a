package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/auditly/internal/catalog"
	"github.com/zombor/auditly/internal/comparison"
	"github.com/zombor/auditly/internal/metadata"
	"github.com/zombor/auditly/internal/upload"
)

// Completion is handed to the CompletionHook when a return reaches the result screen
type Completion struct {
	State State
	Front *upload.File
	Back  *upload.File
}

// CompletionHook is called once per completed return, outside the controller lock
type CompletionHook func(Completion)

// Option configures a Controller
type Option func(*Controller)

// WithUploadOptions sets the options every upload session is created with
func WithUploadOptions(opts upload.Options) Option {
	return func(c *Controller) {
		c.uploadOpts = opts
	}
}

// WithCompletionHook registers a hook for completed returns
func WithCompletionHook(hook CompletionHook) Option {
	return func(c *Controller) {
		c.onComplete = hook
	}
}

// Controller owns the State of one return. Every mutation goes through
// Transition; network calls are delegated to upload sessions and run
// without holding the lock.
type Controller struct {
	mu         sync.Mutex
	catalog    *catalog.Catalog
	client     comparison.Client
	uploadOpts upload.Options
	onComplete CompletionHook

	state    State
	sessions map[Step]*upload.Session
	inFlight map[Step]bool
}

// NewController creates a controller at the first step
func NewController(cat *catalog.Catalog, client comparison.Client, opts ...Option) *Controller {
	c := &Controller{
		catalog:  cat,
		client:   client,
		state:    NewState(),
		sessions: make(map[Step]*upload.Session),
		inFlight: make(map[Step]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// apply must be called with c.mu held
func (c *Controller) apply(e Event) (State, error) {
	next, err := Transition(c.state, e)
	c.state = next
	return next.Clone(), err
}

// SelectCategory filters the catalog for the category and clears any chosen item.
// It does not advance the step.
func (c *Controller) SelectCategory(category string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(CategorySelected{Category: category, Items: c.catalog.ItemsIn(category)})
}

// SelectItem chooses an item from the filtered list and moves to the front upload
func (c *Controller) SelectItem(item string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(ItemSelected{Item: item})
}

// SelectFile starts a fresh upload session for step with f selected and
// returns its preview. The previous session for the step is discarded.
func (c *Controller) SelectFile(step Step, f *upload.File) (upload.Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.uploadStep(step)
	if err != nil {
		return upload.Info{}, err
	}
	if c.inFlight[step] {
		return c.sessions[step].Info(), upload.ErrUploadInProgress
	}

	session := upload.NewSession(c.client, t, c.uploadOpts)
	if err := session.Select(f); err != nil {
		return session.Info(), err
	}
	c.sessions[step] = session
	return session.Info(), nil
}

// SubmitUpload sends the photograph for step. A non-nil f replaces the
// selected file first. The step only advances on a response whose shape
// matches the step; anything else fails the session and leaves state as is.
func (c *Controller) SubmitUpload(ctx context.Context, step Step, f *upload.File) (State, error) {
	session, t, err := c.prepareUpload(step, f)
	if err != nil {
		return c.State(), err
	}

	resp, err := session.Submit(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, step)

	if err != nil {
		return c.state.Clone(), err
	}

	next, err := c.apply(UploadCompleted{Step: step, Response: resp})
	if err != nil {
		session.MarkFailed()
		slog.Warn("Upload response rejected", "step", step, "error", err)
		return next, err
	}

	slog.Info("Image uploaded", "step", step, "comparison_type", t, "final", resp.Final())
	return next, nil
}

// SubmitMetadata validates the reference form. On failure the state keeps
// the fresh error mapping and a *ValidationError is returned.
func (c *Controller) SubmitMetadata(fields metadata.Fields) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(MetadataSubmitted{Fields: fields})
}

// FocusField clears one field's error before the form is resubmitted
func (c *Controller) FocusField(field string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(FieldFocused{Field: field})
}

// AcknowledgeImages moves to the result screen and reports the completed return
func (c *Controller) AcknowledgeImages() (State, error) {
	c.mu.Lock()
	next, err := c.apply(ImagesAcknowledged{})
	if err != nil {
		c.mu.Unlock()
		return next, err
	}
	completion := Completion{
		State: next.Clone(),
		Front: c.sessionFile(StepUploadFront),
		Back:  c.sessionFile(StepUploadBack),
	}
	hook := c.onComplete
	c.mu.Unlock()

	if hook != nil {
		hook(completion)
	}
	return next, nil
}

// Restart discards everything and returns to the first step.
// It is only allowed from the result screen.
func (c *Controller) Restart() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.apply(Restarted{})
	if err != nil {
		return next, err
	}
	c.sessions = make(map[Step]*upload.Session)
	return next, nil
}

// Upload returns the session view for an upload step
func (c *Controller) Upload(step Step) (upload.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[step]
	if !ok {
		return upload.Info{}, false
	}
	return session.Info(), true
}

// prepareUpload resolves the session to submit for step, replacing it when f is given
func (c *Controller) prepareUpload(step Step, f *upload.File) (*upload.Session, comparison.Type, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.uploadStep(step)
	if err != nil {
		return nil, "", err
	}

	if c.inFlight[step] {
		return nil, "", upload.ErrUploadInProgress
	}

	session := c.sessions[step]
	if f != nil {
		fresh := upload.NewSession(c.client, t, c.uploadOpts)
		if err := fresh.Select(f); err != nil {
			return nil, "", err
		}
		c.sessions[step] = fresh
		session = fresh
	}
	if session == nil {
		return nil, "", upload.ErrNoFileSelected
	}
	c.inFlight[step] = true
	return session, t, nil
}

// uploadStep checks that step is the current step and an upload step.
// It must be called with c.mu held.
func (c *Controller) uploadStep(step Step) (comparison.Type, error) {
	t, ok := step.ComparisonType()
	if !ok {
		return "", fmt.Errorf("%w: %s is not an upload step", ErrWrongStep, step)
	}
	if c.state.Step != step {
		return "", fmt.Errorf("%w: %s upload at %s", ErrWrongStep, step, c.state.Step)
	}
	return t, nil
}

func (c *Controller) sessionFile(step Step) *upload.File {
	session, ok := c.sessions[step]
	if !ok || session.Status() != upload.StatusSucceeded {
		return nil
	}
	return session.File()
}
