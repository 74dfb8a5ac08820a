package reactangosdk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	// KindTransport means no response was received.
	KindTransport ErrorKind = "transport"
	// KindStatus means the server answered with a non-2xx status.
	KindStatus ErrorKind = "status"
	// KindDecode means a 2xx body could not be decoded.
	KindDecode ErrorKind = "decode"
)

// Error is the normalized failure returned by every Client call.
type Error struct {
	Kind       ErrorKind
	Method     string
	URL        string
	StatusCode int
	// Code is the server's machine-readable error code, if any.
	Code    string
	Message string
	Body    string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return e.Message
	case KindDecode:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Message, e.Err)
	default:
		if e.Err != nil && e.Message != e.Err.Error() {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Message, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports whether the server answered 404.
func (e *Error) NotFound() bool { return e.Kind == KindStatus && e.StatusCode == 404 }

// Conflict reports whether the server answered 409.
func (e *Error) Conflict() bool { return e.Kind == KindStatus && e.StatusCode == 409 }

func newStatusError(method, url string, status int, body []byte) *Error {
	code, msg := extractMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}
	return &Error{
		Kind:       KindStatus,
		Method:     method,
		URL:        url,
		StatusCode: status,
		Code:       code,
		Message:    msg,
		Body:       string(body),
	}
}

// extractMessage pulls a human-readable message out of the common error body
// shapes: {"error":{"code","message"}}, {"message"|"detail"|"title"} and
// field maps such as {"email":["already exists"]}.
func extractMessage(body []byte) (code, msg string) {
	if !gjson.ValidBytes(body) {
		return "", ""
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return "", ""
	}
	if env := root.Get("error"); env.Exists() {
		if m := env.Get("message"); env.IsObject() && m.Type == gjson.String && m.Str != "" {
			return env.Get("code").String(), m.Str
		}
		if env.Type == gjson.String && env.Str != "" {
			return "", env.Str
		}
	}
	for _, key := range []string{"message", "detail", "title"} {
		if v := root.Get(key); v.Type == gjson.String && v.Str != "" {
			return "", v.Str
		}
	}

	parts := []string{}
	root.ForEach(func(k, v gjson.Result) bool {
		switch {
		case v.IsArray():
			items := []string{}
			for _, it := range v.Array() {
				if it.Type == gjson.String {
					items = append(items, it.Str)
				}
			}
			if len(items) > 0 {
				parts = append(parts, fmt.Sprintf("%s: %s", k.Str, strings.Join(items, ", ")))
			}
		case v.Type == gjson.String && v.Str != "":
			parts = append(parts, fmt.Sprintf("%s: %s", k.Str, v.Str))
		}
		return true
	})
	sort.Strings(parts)
	return "", strings.Join(parts, "; ")
}
