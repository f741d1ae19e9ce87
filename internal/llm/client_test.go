package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8081", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8081" {
		t.Errorf("NewClient() BaseURL = %v, want http://localhost:8081", client.BaseURL)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.client == nil {
		t.Error("NewClient() client should not be nil")
	}
}

func chatReply(content string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ChatResponse{
			ID:     "test-id",
			Object: "chat.completion",
			Choices: []ChatChoice{
				{Index: 0, Message: ChatChoiceMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestClient_ChatWithMessages(t *testing.T) {
	tests := []struct {
		name       string
		messages   []Message
		params     ChatParams
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    bool
	}{
		{
			name: "successful chat",
			messages: []Message{
				{Role: RoleSystem, Content: "You write slides"},
				{Role: RoleUser, Content: "Hello"},
			},
			params: ChatParams{Model: "custom-model", MaxTokens: 100, Temperature: 0.7},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.Contains(r.Header.Get("Authorization"), "Bearer") {
					t.Error("missing Authorization header")
				}
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if len(req.Messages) != 2 {
					t.Errorf("expected 2 messages, got %d", len(req.Messages))
				}
				if req.Model != "custom-model" {
					t.Errorf("expected model custom-model, got %s", req.Model)
				}
				if req.Temperature == nil || *req.Temperature != 0.7 {
					t.Errorf("expected temperature 0.7, got %v", req.Temperature)
				}
				if req.ResponseFormat != nil {
					t.Error("response_format should be omitted without JSON mode")
				}
				chatReply("Hi there!")(w, r)
			},
			wantReply: "Hi there!",
		},
		{
			name:     "default model and temperature with JSON mode",
			messages: []Message{{Role: RoleUser, Content: "Outline"}},
			params:   ChatParams{JSON: true},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "test-model" {
					t.Errorf("expected model test-model, got %s", req.Model)
				}
				if req.Temperature == nil || *req.Temperature != DefaultTemperature {
					t.Errorf("expected default temperature, got %v", req.Temperature)
				}
				if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
					t.Errorf("expected json_object response format, got %+v", req.ResponseFormat)
				}
				chatReply(`{"sections":[]}`)(w, r)
			},
			wantReply: `{"sections":[]}`,
		},
		{
			name:     "no choices returned",
			messages: []Message{{Role: RoleUser, Content: "Hello"}},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(ChatResponse{ID: "test-id", Choices: []ChatChoice{}})
			},
			wantErr: true,
		},
		{
			name:     "server error",
			messages: []Message{{Role: RoleUser, Content: "Hello"}},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
		{
			name:     "no messages",
			messages: nil,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			reply, err := client.ChatWithMessages(context.Background(), tt.messages, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ChatWithMessages() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ChatWithMessages() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("ChatWithMessages() reply = %v, want %v", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_ChatWithMessages_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(chatReply("late")))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "test-key", "test-model")
	if _, err := client.ChatWithMessages(ctx, []Message{{Role: RoleUser, Content: "Hello"}}, ChatParams{}); err == nil {
		t.Error("ChatWithMessages() expected error for cancelled context")
	}
}
