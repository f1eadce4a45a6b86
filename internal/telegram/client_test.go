package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hik1komori/life-dorama-bot/internal/logging"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/testsupport"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

type recordedCall struct {
	Method string
	Body   map[string]any
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(method string, body map[string]any) (int, any)
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		method := parts[len(parts)-1]
		if !strings.HasPrefix(parts[1], "bot") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		f.mu.Lock()
		f.calls = append(f.calls, recordedCall{Method: method, Body: formBody(r)})
		call := f.calls[len(f.calls)-1]
		f.mu.Unlock()
		status, payload := f.respond(method, call.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(payload)
	})
}

// formBody flattens the multipart form the SDK posts. Fields holding JSON
// (numbers, booleans, markup) are decoded; plain strings stay as they are.
func formBody(r *http.Request) map[string]any {
	body := map[string]any{}
	if err := r.ParseMultipartForm(1 << 20); err != nil || r.MultipartForm == nil {
		return body
	}
	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(values[0]), &decoded); err == nil {
			body[key] = decoded
		} else {
			body[key] = values[0]
		}
	}
	return body
}

func (f *fakeAPI) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func ok(result any) (int, any) {
	return http.StatusOK, map[string]any{"ok": true, "result": result}
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(server.URL))
	opts = append([]Option{WithSleeper(func(context.Context, time.Duration) error { return nil })}, opts...)
	client, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSendTextEncodesMarkup(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return ok(map[string]any{"message_id": 9, "chat": map[string]any{"id": 42}})
	}}
	client := newTestClient(t, api)

	ref, err := client.SendText(context.Background(), 42, transport.Text{
		Body:   "<b>hi</b>",
		HTML:   true,
		Inline: transport.InlineKeyboard{{{Text: "Go", Data: "watch:YL2024:1"}, {Text: "Join", URL: "https://t.me/+x"}}},
	})
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if ref != (transport.MessageRef{ChatID: 42, MessageID: 9}) {
		t.Fatalf("unexpected ref %+v", ref)
	}
	call := api.Calls()[0]
	if call.Method != "sendMessage" || call.Body["parse_mode"] != "HTML" {
		t.Fatalf("unexpected call %+v", call)
	}
	markup := call.Body["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	buttons := rows[0].([]any)
	if buttons[0].(map[string]any)["callback_data"] != "watch:YL2024:1" {
		t.Fatalf("unexpected first button %+v", buttons[0])
	}
	if _, has := buttons[1].(map[string]any)["callback_data"]; has {
		t.Fatalf("url button must not carry callback data: %+v", buttons[1])
	}
}

func TestSendTextReplyKeyboard(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return ok(map[string]any{"message_id": 1, "chat": map[string]any{"id": 5}})
	}}
	client := newTestClient(t, api)

	if _, err := client.SendText(context.Background(), 5, transport.Text{Body: "menu", Reply: transport.ReplyKeyboard{{"🔍 Qidirish"}}}); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	markup := api.Calls()[0].Body["reply_markup"].(map[string]any)
	if markup["resize_keyboard"] != true {
		t.Fatalf("expected resize_keyboard, got %+v", markup)
	}
}

func TestSendVideoProtectsContent(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return ok(map[string]any{"message_id": 3, "chat": map[string]any{"id": 7}})
	}}
	client := newTestClient(t, api)

	if _, err := client.SendVideo(context.Background(), 7, transport.Video{ContentRef: "file-1", Caption: "ep 1", Protect: true}); err != nil {
		t.Fatalf("SendVideo failed: %v", err)
	}
	body := api.Calls()[0].Body
	if body["video"] != "file-1" || body["protect_content"] != true || body["caption"] != "ep 1" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRateLimitIsRetried(t *testing.T) {
	var attempts atomic.Int32
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		if attempts.Add(1) == 1 {
			return http.StatusTooManyRequests, map[string]any{
				"ok": false, "error_code": 429, "description": "Too Many Requests: retry after 1",
				"parameters": map[string]any{"retry_after": 1},
			}
		}
		return ok(map[string]any{"message_id": 2, "chat": map[string]any{"id": 1}})
	}}
	var slept []time.Duration
	client := newTestClient(t, api, WithSleeper(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	if _, err := client.Forward(context.Background(), 1, transport.MessageRef{ChatID: 99, MessageID: 5}); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected one retry_after sleep, got %v", slept)
	}
}

func TestForbiddenIsNotRetried(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return http.StatusForbidden, map[string]any{"ok": false, "error_code": 403, "description": "Forbidden: bot was blocked by the user"}
	}}
	client := newTestClient(t, api)

	_, err := client.Forward(context.Background(), 1, transport.MessageRef{ChatID: 99, MessageID: 5})
	if !IsBlocked(err) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if n := len(api.Calls()); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
	if kind := store.KindOf(err); kind != store.KindValidation {
		t.Fatalf("expected validation kind, got %q", kind)
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return http.StatusBadGateway, map[string]any{"ok": false, "error_code": 502, "description": "Bad Gateway"}
	}}
	client := newTestClient(t, api, WithRetryMaxAttempts(3))

	_, err := client.SendText(context.Background(), 1, transport.Text{Body: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 502 {
		t.Fatalf("expected 502 APIError, got %v", err)
	}
	if len(api.Calls()) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(api.Calls()))
	}
	if store.KindOf(err) != store.KindTransient {
		t.Fatalf("expected transient kind, got %q", store.KindOf(err))
	}
}

func TestEditNotModifiedIsSuccess(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]any) (int, any) {
		return http.StatusBadRequest, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: message is not modified"}
	}}
	client := newTestClient(t, api)

	if err := client.EditText(context.Background(), transport.MessageRef{ChatID: 1, MessageID: 2}, transport.Text{Body: "same"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestGetMembership(t *testing.T) {
	api := &fakeAPI{respond: func(_ string, body map[string]any) (int, any) {
		if body["user_id"].(float64) == 1 {
			return ok(map[string]any{"status": "administrator", "user": map[string]any{"id": 1}})
		}
		return ok(map[string]any{"status": "kicked", "user": map[string]any{"id": 2}})
	}}
	client := newTestClient(t, api)

	status, err := client.GetMembership(context.Background(), -100, 1)
	if err != nil || status != transport.StatusAdministrator {
		t.Fatalf("unexpected status %q err %v", status, err)
	}
	status, err = client.GetMembership(context.Background(), -100, 2)
	if err != nil || !status.Gone() {
		t.Fatalf("unexpected status %q err %v", status, err)
	}
}

func TestPollDeliversUpdatesAndAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := &fakeAPI{respond: func(method string, body map[string]any) (int, any) {
		if method != "getUpdates" {
			t.Errorf("unexpected method %s", method)
		}
		if body["offset"].(float64) != 1 {
			return ok([]any{})
		}
		return ok([]any{
			map[string]any{"update_id": 10, "message": map[string]any{
				"message_id": 1, "chat": map[string]any{"id": 5, "type": "private"},
				"from": map[string]any{"id": 5, "first_name": "Ann"}, "text": "YL",
			}},
			map[string]any{"update_id": 11, "poll": map[string]any{"id": "x"}},
			map[string]any{"update_id": 12, "chat_member": map[string]any{
				"chat":            map[string]any{"id": -100, "type": "channel"},
				"from":            map[string]any{"id": 5},
				"old_chat_member": map[string]any{"status": "left", "user": map[string]any{"id": 5}},
				"new_chat_member": map[string]any{"status": "member", "user": map[string]any{"id": 5}},
			}},
		})
	}}
	client := newTestClient(t, api)

	var got []transport.Update
	err := client.Poll(ctx, logging.NewNop(), func(_ context.Context, update transport.Update) {
		got = append(got, update)
		if len(got) == 2 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(got))
	}
	if got[0].Message == nil || got[0].Message.Text != "YL" || got[0].Message.From.FirstName != "Ann" {
		t.Fatalf("unexpected message update %+v", got[0])
	}
	change := got[1].MembershipChange
	if change == nil || change.Old != transport.StatusLeft || change.New != transport.StatusMember || change.Chat.ID != -100 {
		t.Fatalf("unexpected membership update %+v", got[1])
	}
	allowed := api.Calls()[0].Body["allowed_updates"].([]any)
	if len(allowed) != len(AllowedUpdates) {
		t.Fatalf("unexpected allowed_updates %v", allowed)
	}
}

func TestDecodeUpdateCallbackAndJoinRequest(t *testing.T) {
	update, ok, err := DecodeUpdate([]byte(`{"update_id":1,"callback_query":{"id":"cb","from":{"id":7},"data":"sendall:YL2024","message":{"message_id":3,"chat":{"id":7}}}}`))
	if err != nil || !ok {
		t.Fatalf("DecodeUpdate failed: %v %v", ok, err)
	}
	if update.Callback.Data != "sendall:YL2024" || update.Callback.Message.Ref() != (transport.MessageRef{ChatID: 7, MessageID: 3}) {
		t.Fatalf("unexpected callback %+v", update.Callback)
	}

	update, ok, err = DecodeUpdate([]byte(`{"update_id":2,"chat_join_request":{"chat":{"id":-100},"from":{"id":9,"username":"viewer"}}}`))
	if err != nil || !ok {
		t.Fatalf("DecodeUpdate failed: %v %v", ok, err)
	}
	if update.JoinRequest.User.ID != 9 || update.JoinRequest.Chat.ID != -100 {
		t.Fatalf("unexpected join request %+v", update.JoinRequest)
	}

	if _, _, err := DecodeUpdate([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMissingTokenFailsFast(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Telegram.BotToken = ""
	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestGetMeReturnsIdentity(t *testing.T) {
	api := &fakeAPI{respond: func(method string, _ map[string]any) (int, any) {
		if method != "getMe" {
			t.Errorf("unexpected method %s", method)
		}
		return ok(map[string]any{"id": 77, "is_bot": true, "first_name": "Dorama", "username": "life_dorama_bot"})
	}}
	client := newTestClient(t, api)

	info, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if info.ID != 77 || info.Username != "life_dorama_bot" {
		t.Fatalf("unexpected identity %+v", info)
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL(server.URL))
	client, err := NewClient(cfg, WithRetryMaxAttempts(2), WithSleeper(func(context.Context, time.Duration) error { return nil }))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.SendText(context.Background(), 1, transport.Text{Body: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 0 || !apiErr.Temporary() {
		t.Fatalf("expected transient APIError without code, got %v", err)
	}
	if store.KindOf(err) != store.KindTransient {
		t.Fatalf("expected transient kind, got %q", store.KindOf(err))
	}
}

func TestPollDeliversUpdatesInArrivalOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var batch []any
	for i := 1; i <= 20; i++ {
		batch = append(batch, map[string]any{"update_id": i, "chat_join_request": map[string]any{
			"chat": map[string]any{"id": -100, "type": "channel"},
			"from": map[string]any{"id": i},
			"date": 1,
		}})
	}
	api := &fakeAPI{respond: func(_ string, body map[string]any) (int, any) {
		if body["offset"].(float64) != 1 {
			return ok([]any{})
		}
		return ok(batch)
	}}
	client := newTestClient(t, api)

	var got []int64
	if err := client.Poll(ctx, logging.NewNop(), func(_ context.Context, update transport.Update) {
		got = append(got, update.JoinRequest.User.ID)
		if len(got) == len(batch) {
			cancel()
		}
	}); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	for i, id := range got {
		if id != int64(i+1) {
			t.Fatalf("updates out of order: %v", got)
		}
	}
}
