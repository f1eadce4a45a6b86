package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/hik1komori/life-dorama-bot/internal/store"
)

// APIError is a failed Bot API call. Code is the Bot API error code, or zero
// when the request never got a verdict (network failure, timeout, garbled
// response).
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
	Err         error
}

func (e *APIError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("telegram %s: %s", e.Method, strings.TrimSpace(e.Description))
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, strings.TrimSpace(e.Description))
}

func (e *APIError) Unwrap() error { return e.Err }

// ErrorKind implements store.ErrorClassifier. Rate limits, server errors and
// failed round trips are transient; other rejections are validation failures
// of the request.
func (e *APIError) ErrorKind() string {
	if e.Temporary() {
		return store.KindTransient
	}
	return store.KindValidation
}

// Temporary reports whether retrying the same call may succeed.
func (e *APIError) Temporary() bool {
	return e.Code == 0 || e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Blocked reports whether the user blocked the bot or deleted their account.
func (e *APIError) Blocked() bool {
	return e.Code == http.StatusForbidden
}

// NotModified reports an edit that left the message unchanged.
func (e *APIError) NotModified() bool {
	return e.Code == http.StatusBadRequest && strings.Contains(e.Description, "message is not modified")
}

// IsBlocked reports whether err is a Bot API "forbidden" response.
func IsBlocked(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Blocked()
}

// classify maps SDK errors onto APIError. The SDK exposes sentinels for the
// common 4xx codes and a typed error for 429; any other error response only
// carries its code in the message text.
func classify(method string, err error) *APIError {
	apiErr := &APIError{Method: method, Description: err.Error(), Err: err}

	var tooMany *tgbot.TooManyRequestsError
	var migrate *tgbot.MigrateError
	switch {
	case errors.As(err, &tooMany):
		apiErr.Code = http.StatusTooManyRequests
		apiErr.RetryAfter = time.Duration(tooMany.RetryAfter) * time.Second
	case errors.As(err, &migrate), errors.Is(err, tgbot.ErrorBadRequest):
		apiErr.Code = http.StatusBadRequest
	case errors.Is(err, tgbot.ErrorForbidden):
		apiErr.Code = http.StatusForbidden
	case errors.Is(err, tgbot.ErrorUnauthorized):
		apiErr.Code = http.StatusUnauthorized
	case errors.Is(err, tgbot.ErrorNotFound):
		apiErr.Code = http.StatusNotFound
	case errors.Is(err, tgbot.ErrorConflict):
		apiErr.Code = http.StatusConflict
	default:
		apiErr.Code = responseCode(method, err.Error())
	}
	return apiErr
}

// responseCode reads the code from the SDK's generic error response text,
// "error response from telegram for method <m>, <code> <description>".
func responseCode(method, message string) int {
	_, rest, found := strings.Cut(message, "for method "+method+", ")
	if !found {
		return 0
	}
	field, _, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(field)
	if err != nil || code < http.StatusBadRequest {
		return 0
	}
	return code
}
