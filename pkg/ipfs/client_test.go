package ipfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewClient(t *testing.T) {
	logger := zap.NewNop()

	t.Run("default_config", func(t *testing.T) {
		client, err := NewClient(Config{}, logger)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		if client.apiURL != "http://localhost:5001" {
			t.Errorf("Expected default API URL 'http://localhost:5001', got %s", client.apiURL)
		}
		if client.httpClient.Timeout != 60*time.Second {
			t.Errorf("Expected default timeout 60s, got %v", client.httpClient.Timeout)
		}
	})

	t.Run("custom_config", func(t *testing.T) {
		client, err := NewClient(Config{APIURL: "http://custom:5002/", Timeout: 30 * time.Second}, logger)
		if err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
		if client.apiURL != "http://custom:5002" {
			t.Errorf("Expected API URL 'http://custom:5002', got %s", client.apiURL)
		}
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Expected timeout 30s, got %v", client.httpClient.Timeout)
		}
	})

	t.Run("invalid_url", func(t *testing.T) {
		if _, err := NewClient(Config{APIURL: "not a url"}, logger); err == nil {
			t.Error("Expected error for invalid URL")
		}
	})
}

func TestClient_Add(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v0/add" {
				t.Errorf("Expected path '/api/v0/add', got %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("Expected method POST, got %s", r.Method)
			}

			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("Failed to get file: %v", err)
				return
			}
			defer file.Close()
			content, _ := io.ReadAll(file)
			if string(content) != "hello" {
				t.Errorf("Expected content 'hello', got %q", content)
			}

			w.Write([]byte(`{"Name":"file","Hash":"QmFirst","Size":"13"}` + "\n"))
			w.Write([]byte(`{"Name":"","Hash":"QmSecond","Size":"20"}` + "\n"))
		}))
		defer server.Close()

		client, _ := NewClient(Config{APIURL: server.URL}, nil)
		results, err := client.Add(context.Background(), []byte("hello"))
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(results))
		}
		if results[0].Path() != "QmFirst" {
			t.Errorf("Expected first hash QmFirst, got %s", results[0].Path())
		}
	})

	t.Run("server_error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"Message":"disk full","Code":0,"Type":"error"}`))
		}))
		defer server.Close()

		client, _ := NewClient(Config{APIURL: server.URL}, nil)
		_, err := client.Add(context.Background(), []byte("hello"))
		if err == nil || !strings.Contains(err.Error(), "disk full") {
			t.Errorf("Expected daemon message in error, got %v", err)
		}
	})

	t.Run("empty_stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		client, _ := NewClient(Config{APIURL: server.URL}, nil)
		if _, err := client.Add(context.Background(), []byte("x")); err == nil {
			t.Error("Expected error for empty response")
		}
	})
}

func TestClient_ObjectGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/object/get" {
			t.Errorf("Expected path '/api/v0/object/get', got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("arg"); got != "QmHash" {
			t.Errorf("Expected arg QmHash, got %s", got)
		}
		w.Write([]byte(`{"Links":[],"Data":"\u0008\u0002\u0012\u0005hello"}`))
	}))
	defer server.Close()

	client, _ := NewClient(Config{APIURL: server.URL}, nil)
	node, err := client.ObjectGet(context.Background(), "QmHash")
	if err != nil {
		t.Fatalf("ObjectGet failed: %v", err)
	}
	if !strings.HasSuffix(node.Data, "hello") {
		t.Errorf("Expected data ending in hello, got %q", node.Data)
	}
}

func TestClient_Cat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/cat" {
			t.Errorf("Expected path '/api/v0/cat', got %s", r.URL.Path)
		}
		w.Write([]byte("raw bytes"))
	}))
	defer server.Close()

	client, _ := NewClient(Config{APIURL: server.URL}, nil)
	data, err := client.Cat(context.Background(), "QmHash")
	if err != nil {
		t.Fatalf("Cat failed: %v", err)
	}
	if string(data) != "raw bytes" {
		t.Errorf("Expected 'raw bytes', got %q", data)
	}
}

func TestDial(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v0/version" {
				t.Errorf("Expected path '/api/v0/version', got %s", r.URL.Path)
			}
			w.Write([]byte(`{"Version":"0.29.0"}`))
		}))
		defer server.Close()

		if _, err := Dial(context.Background(), Config{APIURL: server.URL}, nil); err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		if _, err := Dial(context.Background(), Config{APIURL: url, Timeout: time.Second}, nil); err == nil {
			t.Error("Expected error for closed server")
		}
	})
}
