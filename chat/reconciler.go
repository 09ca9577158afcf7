package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/famworld/famagent/llm"
)

var (
	// ErrBusy is returned when a send arrives while a turn is in flight.
	ErrBusy = errors.New("a turn is already in flight")
	// ErrEmptyTurn is returned for a send with no text and no attachments.
	ErrEmptyTurn = errors.New("nothing to send")
)

// Reconciler drives one assistant turn to completion against the completion
// stream, keeping the live mirror and the addressed workspace coherent
// throughout. At most one turn is in flight at a time.
type Reconciler struct {
	store     *Store
	client    llm.Client
	model     string
	maxTokens int
	log       *slog.Logger

	// OnFragment, when set, observes each fragment after it is applied.
	OnFragment func(token string)

	busy atomic.Bool
}

// NewReconciler instantiates a reconciler.
func NewReconciler(store *Store, client llm.Client, model string, maxTokens int, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		log:       logger,
	}
}

// Send runs one turn: it appends the user message and a streaming
// placeholder to the active workspace (creating one from the turn's text
// when none is active), then applies stream fragments in order to both the
// live mirror and the captured workspace. The workspace addressed by the
// turn is fixed here; switching the active workspace mid-stream does not
// redirect updates, and deleting it degrades them to no-ops.
//
// Stream failures never escape the turn: they are committed into the
// placeholder as an inline error. A canceled ctx stops fragment application
// and terminalizes the placeholder with whatever accumulated.
func (r *Reconciler) Send(ctx context.Context, text string, attachments []*Attachment, searchMode bool) error {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return ErrEmptyTurn
	}
	if !r.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.busy.Store(false)

	key, history, placeholderID := r.store.beginTurn(text, attachments)

	request := &llm.CreateTextGenerationRequest{
		Model:      r.model,
		Messages:   completionMessages(history, text, attachments),
		MaxTokens:  r.maxTokens,
		SearchMode: searchMode,
	}
	stream, err := r.client.CreateTextGeneration(ctx, request)
	if err != nil {
		r.fail(key, placeholderID, err)
		return nil
	}
	defer stream.Close()

	var accumulator strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				// Abandoned turn. What accumulated is flushed as-is.
				r.terminalize(key, placeholderID, accumulator.String())
				return err
			}
			r.fail(key, placeholderID, err)
			return nil
		}
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			r.terminalize(key, placeholderID, accumulator.String())
			return nil
		}
		if err != nil {
			r.fail(key, placeholderID, err)
			return nil
		}
		accumulator.WriteString(event.Token)
		accumulated := accumulator.String()
		r.store.UpdateMessage(key, placeholderID, MessagePatch{Text: &accumulated})
		if r.OnFragment != nil {
			r.OnFragment(event.Token)
		}
	}
}

// terminalize flips the placeholder out of its streaming state.
func (r *Reconciler) terminalize(key, placeholderID, text string) {
	streaming := false
	r.store.UpdateMessage(key, placeholderID, MessagePatch{Text: &text, Streaming: &streaming})
}

// fail commits a stream failure into the placeholder as an inline error.
func (r *Reconciler) fail(key, placeholderID string, err error) {
	r.log.Warn("completion stream failed", "workspace", key, "error", err)
	text := fmt.Sprintf("Error: %s", err.Error())
	streaming := false
	errored := true
	r.store.UpdateMessage(key, placeholderID, MessagePatch{Text: &text, Streaming: &streaming, Errored: &errored})
}

// completionMessages shapes a turn into the completion request: prior
// history minus the greeting and errored turns, extracted attachment text as
// system context, then the new user text.
func completionMessages(history []*Message, text string, attachments []*Attachment) []*llm.Message {
	messages := make([]*llm.Message, 0, len(history)+len(attachments)+1)
	for _, attachment := range attachments {
		if attachment.ExtractedText == "" {
			continue
		}
		messages = append(messages, &llm.Message{
			Role:    llm.SystemRole,
			Content: fmt.Sprintf("file %s: `%s`", attachment.Filename, attachment.ExtractedText),
		})
	}
	for _, message := range history {
		if message.Errored || message.ID == InitMessageID {
			continue
		}
		role := llm.UserRole
		if message.Role == RoleAssistant {
			role = llm.AssistantRole
		}
		messages = append(messages, &llm.Message{Role: role, Content: message.Text})
	}
	return append(messages, &llm.Message{Role: llm.UserRole, Content: text})
}
