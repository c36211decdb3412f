package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottok/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":321}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	id, err := c.SendMessage(context.Background(), -100200, 42, "привет")
	require.NoError(t, err)
	require.Equal(t, 321, id)

	require.Equal(t, float64(-100200), got["chat_id"])
	require.Equal(t, float64(42), got["message_thread_id"])
	require.Equal(t, "HTML", got["parse_mode"])
}

func TestClient_SendMessage_NoTopicOmitsThreadID(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.SendMessage(context.Background(), 5, 0, "x")
	require.NoError(t, err)
	_, ok := got["message_thread_id"]
	require.False(t, ok)
}

func TestClient_EditAndDelete(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	require.NoError(t, c.EditMessage(context.Background(), 5, 9, "новый текст"))
	require.NoError(t, c.DeleteMessage(context.Background(), 5, 9))
	require.Equal(t, []string{"/bottok/editMessageText", "/bottok/deleteMessage"}, paths)
}

func TestClient_APIErrorSurfacesDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.SendMessage(context.Background(), 5, 0, "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")
}
