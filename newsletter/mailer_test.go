package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResendMailerSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	m, err := NewResendMailer("re_test", srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewResendMailer: %v", err)
	}
	id, err := m.Send(context.Background(), Message{From: "blog <a@b.co>", To: "ana@example.com", Subject: "Hola", Text: "cuerpo"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "email-123" {
		t.Fatalf("id = %q", id)
	}
	to, _ := got["to"].([]any)
	if len(to) != 1 || to[0] != "ana@example.com" || got["subject"] != "Hola" || got["text"] != "cuerpo" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestResendMailerReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid to"}`))
	}))
	defer srv.Close()

	m, _ := NewResendMailer("re_test", srv.URL, time.Second)
	if _, err := m.Send(context.Background(), Message{To: "x"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewResendMailerRequiresKey(t *testing.T) {
	if _, err := NewResendMailer("", "", time.Second); !errors.Is(err, ErrMailerNotConfigured) {
		t.Fatalf("expected ErrMailerNotConfigured, got %v", err)
	}
}
