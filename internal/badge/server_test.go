package badge

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0, // Use random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	// Give server time to start
	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := startTestServer(t)

	if addr := server.GetAddr(); addr == "" {
		t.Fatal("Server address is empty")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	server := NewServer(&Config{
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() on an unstarted server failed: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	// The welcome message replays the last badge count
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeBadge {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeBadge, msg.Type)
	}
}

func TestWelcomeReplaysLastBadge(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	// Publish before any client connects
	server.PublishBadge(7)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	var badge BadgeData
	if err := json.Unmarshal(msg.Data, &badge); err != nil {
		t.Fatalf("Failed to unmarshal badge data: %v", err)
	}

	if badge.AttentionCount != 7 {
		t.Errorf("Expected welcome badge count 7, got %d", badge.AttentionCount)
	}
}

func TestPublishBadgeBroadcast(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	server.PublishBadge(12)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeBadge {
		t.Errorf("Expected message type %s, got %s", MessageTypeBadge, msg.Type)
	}

	var badge BadgeData
	if err := json.Unmarshal(msg.Data, &badge); err != nil {
		t.Fatalf("Failed to unmarshal badge data: %v", err)
	}

	if badge.AttentionCount != 12 {
		t.Errorf("Expected badge count 12, got %d", badge.AttentionCount)
	}
}

func TestPublishSyncBroadcast(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	server.PublishSync(SyncCompleteData{
		Queries:  3,
		Failed:   1,
		Saved:    true,
		Duration: 2 * time.Second,
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read sync complete: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeSyncComplete {
		t.Errorf("Expected message type %s, got %s", MessageTypeSyncComplete, msg.Type)
	}

	var syncData SyncCompleteData
	if err := json.Unmarshal(msg.Data, &syncData); err != nil {
		t.Fatalf("Failed to unmarshal sync data: %v", err)
	}

	if syncData.Queries != 3 {
		t.Errorf("Expected 3 queries, got %d", syncData.Queries)
	}
	if syncData.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", syncData.Failed)
	}
	if !syncData.Saved {
		t.Error("Expected saved=true")
	}
}

func TestPublishErrorBroadcast(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Read welcome message
	if _, _, err := conn.Read(ctx); err != nil {
		t.Fatalf("Failed to read welcome message: %v", err)
	}

	server.PublishError(401)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read error message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}

	if msg.Type != MessageTypeError {
		t.Errorf("Expected message type %s, got %s", MessageTypeError, msg.Type)
	}

	var errData ErrorData
	if err := json.Unmarshal(msg.Data, &errData); err != nil {
		t.Fatalf("Failed to unmarshal error data: %v", err)
	}

	if errData.Code != 401 {
		t.Errorf("Expected error code 401, got %d", errData.Code)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.GetAddr() + "/ws"

	numClients := 3
	for i := 0; i < numClients; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect client %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		// Read welcome message
		if _, _, err := conn.Read(ctx); err != nil {
			t.Fatalf("Failed to read welcome message for client %d: %v", i, err)
		}
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t)
	defer server.Stop()

	server.PublishBadge(5)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
		Badge   int    `json:"badge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}

	if body.Status != "ok" {
		t.Errorf("Expected status ok, got %s", body.Status)
	}
	if body.Badge != 5 {
		t.Errorf("Expected badge 5, got %d", body.Badge)
	}
}
