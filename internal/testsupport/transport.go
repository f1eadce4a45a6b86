package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

// ErrInjected is returned by the fake transport for scripted failures.
var ErrInjected = errors.New("injected transport failure")

// SentText records one SendText call.
type SentText struct {
	ChatID int64
	Text   transport.Text
	Ref    transport.MessageRef
}

// SentVideo records one SendVideo call.
type SentVideo struct {
	ChatID int64
	Video  transport.Video
}

// Forwarded records one Forward call.
type Forwarded struct {
	ChatID int64
	Source transport.MessageRef
}

// Edit records one EditText call.
type Edit struct {
	Ref  transport.MessageRef
	Text transport.Text
}

// Answer records one AnswerCallback call.
type Answer struct {
	CallbackID string
	Text       string
	Alert      bool
}

// Transport is an in-memory transport.Transport with failure injection.
type Transport struct {
	mu sync.Mutex

	nextID int

	Texts     []SentText
	Videos    []SentVideo
	Forwards  []Forwarded
	Edits     []Edit
	Answers   []Answer
	Lookups   int
	failVideo map[string]bool
	failChat  map[int64]bool
	failEdits bool
	members   map[[2]int64]transport.MemberStatus
	lookupErr map[int64]error
}

// NewTransport returns an empty fake transport.
func NewTransport() *Transport {
	return &Transport{
		failVideo: make(map[string]bool),
		failChat:  make(map[int64]bool),
		members:   make(map[[2]int64]transport.MemberStatus),
		lookupErr: make(map[int64]error),
	}
}

// FailVideo makes sends of the given content reference fail.
func (t *Transport) FailVideo(contentRef string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failVideo[contentRef] = true
}

// FailChat makes every send and forward to the chat fail.
func (t *Transport) FailChat(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failChat[chatID] = true
}

// FailEdits makes every EditText call fail.
func (t *Transport) FailEdits() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failEdits = true
}

// SetMember scripts the live membership status of a user in a channel.
func (t *Transport) SetMember(channelID, userID int64, status transport.MemberStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.members[[2]int64{channelID, userID}] = status
}

// FailLookups makes membership lookups for the channel fail.
func (t *Transport) FailLookups(channelID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	t.lookupErr[channelID] = err
}

func (t *Transport) ref(chatID int64) transport.MessageRef {
	t.nextID++
	return transport.MessageRef{ChatID: chatID, MessageID: t.nextID}
}

// SendText implements transport.Sender.
func (t *Transport) SendText(_ context.Context, chatID int64, text transport.Text) (transport.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failChat[chatID] {
		return transport.MessageRef{}, fmt.Errorf("send text to %d: %w", chatID, ErrInjected)
	}
	ref := t.ref(chatID)
	t.Texts = append(t.Texts, SentText{ChatID: chatID, Text: text, Ref: ref})
	return ref, nil
}

// SendVideo implements transport.Sender.
func (t *Transport) SendVideo(_ context.Context, chatID int64, video transport.Video) (transport.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failChat[chatID] || t.failVideo[video.ContentRef] {
		return transport.MessageRef{}, fmt.Errorf("send video %s: %w", video.ContentRef, ErrInjected)
	}
	t.Videos = append(t.Videos, SentVideo{ChatID: chatID, Video: video})
	return t.ref(chatID), nil
}

// Forward implements transport.Sender.
func (t *Transport) Forward(_ context.Context, chatID int64, source transport.MessageRef) (transport.MessageRef, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failChat[chatID] {
		return transport.MessageRef{}, fmt.Errorf("forward to %d: %w", chatID, ErrInjected)
	}
	t.Forwards = append(t.Forwards, Forwarded{ChatID: chatID, Source: source})
	return t.ref(chatID), nil
}

// EditText implements transport.Sender.
func (t *Transport) EditText(_ context.Context, ref transport.MessageRef, text transport.Text) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failEdits {
		return fmt.Errorf("edit message %d: %w", ref.MessageID, ErrInjected)
	}
	t.Edits = append(t.Edits, Edit{Ref: ref, Text: text})
	return nil
}

// AnswerCallback implements transport.CallbackAnswerer.
func (t *Transport) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Answers = append(t.Answers, Answer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

// GetMembership implements transport.MembershipChecker. Unscripted pairs
// report StatusLeft.
func (t *Transport) GetMembership(_ context.Context, channelID, userID int64) (transport.MemberStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Lookups++
	if err := t.lookupErr[channelID]; err != nil {
		return "", err
	}
	if status, ok := t.members[[2]int64{channelID, userID}]; ok {
		return status, nil
	}
	return transport.StatusLeft, nil
}

// TextsTo returns the bodies of texts sent to a chat, in order.
func (t *Transport) TextsTo(chatID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var bodies []string
	for _, text := range t.Texts {
		if text.ChatID == chatID {
			bodies = append(bodies, text.Text.Body)
		}
	}
	return bodies
}

// LastText returns the most recent text sent to a chat.
func (t *Transport) LastText(chatID int64) (transport.Text, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.Texts) - 1; i >= 0; i-- {
		if t.Texts[i].ChatID == chatID {
			return t.Texts[i].Text, true
		}
	}
	return transport.Text{}, false
}

// VideoRefs returns the content references delivered to a chat, in order.
func (t *Transport) VideoRefs(chatID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var refs []string
	for _, video := range t.Videos {
		if video.ChatID == chatID {
			refs = append(refs, video.Video.ContentRef)
		}
	}
	return refs
}

// LookupCount returns how many membership lookups were made.
func (t *Transport) LookupCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Lookups
}

var _ transport.Transport = (*Transport)(nil)
