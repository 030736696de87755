package services_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeQuestAPI/internal/notification"
	"tradeQuestAPI/services"
)

func TestLiveHubPublishesToUserSockets(t *testing.T) {
	hub := services.NewLiveHub()
	userID := uuid.New()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Attach(userID, conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(&notification.Notification{ID: uuid.New(), UserID: uuid.New(), Title: "someone else"})
	hub.Publish(&notification.Notification{ID: uuid.New(), UserID: userID, Title: "Level up!"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload struct {
		Action       string                    `json:"action"`
		Notification notification.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(msg, &payload))
	assert.Equal(t, "notification", payload.Action)
	assert.Equal(t, "Level up!", payload.Notification.Title)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
