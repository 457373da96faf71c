package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/formcoach/server/pkg/faults"
	httputil "github.com/formcoach/server/pkg/infrastructure/http"
)

func TestCreateThread(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"thread_id": "thread-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1")
	threadID, err := c.CreateThread(context.Background(), "+491", "Anna")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if threadID != "thread-42" {
		t.Errorf("Unexpected thread ID: %s", threadID)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("Unexpected auth header: %s", gotAuth)
	}
	if gotPath != "/v1/threads" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if gotBody["owner_id"] != "+491" || gotBody["title"] != "Anna" {
		t.Errorf("Unexpected body: %v", gotBody)
	}
}

func TestCreateThreadRejectsEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1")
	if _, err := c.CreateThread(context.Background(), "+491", ""); err == nil {
		t.Error("Expected an error for a missing thread_id")
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread-42/messages" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"reply": "drink more water"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1")
	reply, err := c.SendMessage(context.Background(), "thread-42", "I have a headache")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reply != "drink more water" {
		t.Errorf("Unexpected reply: %s", reply)
	}
}

func TestSendMessageErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"thread not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1")
	_, err := c.SendMessage(context.Background(), "gone", "hello")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if httputil.StatusOf(err) != http.StatusNotFound {
		t.Errorf("Expected 404 in error chain, got %d", httputil.StatusOf(err))
	}
	if !faults.IsTransient(err) {
		t.Errorf("Expected a transient collaborator failure, got %v", err)
	}
}
