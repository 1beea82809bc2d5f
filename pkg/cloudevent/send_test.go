package cloudevent

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendSetsHeadersAndSignature(t *testing.T) {
	t.Parallel()
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := New("gateclient.run.completed", "gate-runner", "job-1", "evt-1", map[string]any{"tool": "musetalk"})
	sender := NewSender(5 * time.Second)
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{SigningKey: "key"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if got := gotHeaders.Get("Ce-Type"); got != "gateclient.run.completed" {
		t.Errorf("Ce-Type = %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/cloudevents+json" {
		t.Errorf("Content-Type = %q", got)
	}

	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if got := gotHeaders.Get("X-Signature-256"); got != want {
		t.Errorf("X-Signature-256 = %q, want %q", got, want)
	}
}

func TestSendNoSignatureWithoutKey(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Signature-256") != "" {
			t.Error("unexpected signature header")
		}
	}))
	defer srv.Close()

	event := New("gateclient.run.completed", "gate-runner", "job-1", "evt-1", nil)
	if err := NewSender(5*time.Second).Send(context.Background(), srv.URL, event, SendOptions{}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
}

func TestSendHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	event := New("gateclient.run.completed", "gate-runner", "job-1", "evt-1", nil)
	err := NewSender(5*time.Second).Send(context.Background(), srv.URL, event, SendOptions{})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
	if !IsClientError(err) {
		t.Error("404 should classify as client error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error message %q should contain status", err.Error())
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	if IsClientError(&HTTPError{StatusCode: 500}) {
		t.Error("500 is not a client error")
	}
	if IsClientError(errors.New("dial refused")) {
		t.Error("transport errors are not client errors")
	}
}
