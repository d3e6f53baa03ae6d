package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"campushub-backend/internal/models"
)

func postMessage(t *testing.T, channelID int64, callerID int64, content string) (*httptest.ResponseRecorder, models.Message) {
	t.Helper()

	body := map[string]string{"channelID": fmt.Sprint(channelID), "content": content}
	req := authedRequest(t, "POST", "/api/message/create", body, callerID)
	rr := doRequest(req)

	var msg models.Message
	if rr.Code == http.StatusCreated {
		if err := json.Unmarshal(rr.Body.Bytes(), &msg); err != nil {
			t.Fatal(err)
		}
	}
	return rr, msg
}

func fetchMessages(t *testing.T, channelID int64, callerID int64) (*httptest.ResponseRecorder, []models.Message) {
	t.Helper()

	req := authedRequest(t, "GET", fmt.Sprintf("/api/message/fetch?channelID=%d", channelID), nil, callerID)
	rr := doRequest(req)

	var messages []models.Message
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &messages); err != nil {
			t.Fatal(err)
		}
	}
	return rr, messages
}

func TestPostAndFetchMessages(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	memberID := createTestUser(t, "member")
	server := createTestServer(t, ownerID, "Chatty")
	if rr := joinTestServer(t, server.InviteCode, memberID); rr.Code != http.StatusOK {
		t.Fatal("join failed")
	}
	detail, _ := fetchServerDetail(t, server.ID, ownerID)
	channelID := detail.Channels[0].ID

	rr, first := postMessage(t, channelID, ownerID, "welcome everyone")
	if rr.Code != http.StatusCreated {
		t.Fatalf("post returned %d: %s", rr.Code, rr.Body.String())
	}
	if first.SenderID != ownerID {
		t.Errorf("senderID = %d, want %d", first.SenderID, ownerID)
	}
	if first.Sender.DisplayName == "" {
		t.Error("created message is missing sender info")
	}

	postMessage(t, channelID, memberID, "hi!")
	postMessage(t, channelID, ownerID, "rules are in the pinned post")

	rr, messages := fetchMessages(t, channelID, memberID)
	if rr.Code != http.StatusOK {
		t.Fatalf("fetch returned %d", rr.Code)
	}
	if len(messages) != 3 {
		t.Fatalf("message count = %d, want 3", len(messages))
	}

	// oldest first, snowflake IDs strictly ascending
	for i := 1; i < len(messages); i++ {
		if messages[i].ID <= messages[i-1].ID {
			t.Fatalf("messages out of order: id %d follows %d", messages[i].ID, messages[i-1].ID)
		}
	}
	if messages[0].Content != "welcome everyone" {
		t.Errorf("first message = %q, want the oldest one", messages[0].Content)
	}
	if messages[1].SenderID != memberID {
		t.Errorf("second message senderID = %d, want %d", messages[1].SenderID, memberID)
	}

	// a second fetch returns the same messages in the same order
	_, again := fetchMessages(t, channelID, memberID)
	if len(again) != len(messages) {
		t.Fatalf("repeat fetch count = %d, want %d", len(again), len(messages))
	}
	for i := range messages {
		if again[i].ID != messages[i].ID {
			t.Fatalf("repeat fetch reordered messages at index %d", i)
		}
	}
}

func TestPostMessageRequiresMembership(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	strangerID := createTestUser(t, "stranger")
	server := createTestServer(t, ownerID, "Members Only")
	detail, _ := fetchServerDetail(t, server.ID, ownerID)
	channelID := detail.Channels[0].ID

	rr, _ := postMessage(t, channelID, strangerID, "let me in")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("post by non-member returned %d, want 403", rr.Code)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE channel_id = ?", channelID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rejected post still wrote %d rows", count)
	}

	if rr, _ := fetchMessages(t, channelID, strangerID); rr.Code != http.StatusForbidden {
		t.Errorf("fetch by non-member returned %d, want 403", rr.Code)
	}
}

func TestPostMessageValidation(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	server := createTestServer(t, ownerID, "Strict")
	detail, _ := fetchServerDetail(t, server.ID, ownerID)
	channelID := detail.Channels[0].ID

	if rr, _ := postMessage(t, channelID, ownerID, ""); rr.Code != http.StatusBadRequest {
		t.Errorf("empty message returned %d, want 400", rr.Code)
	}

	// a file attachment stands in for content
	body := map[string]string{"channelID": fmt.Sprint(channelID), "fileUrl": "/cdn/report.pdf"}
	req := authedRequest(t, "POST", "/api/message/create", body, ownerID)
	if rr := doRequest(req); rr.Code != http.StatusCreated {
		t.Errorf("file-only message returned %d, want 201", rr.Code)
	}

	if rr, _ := postMessage(t, 42, ownerID, "void"); rr.Code != http.StatusNotFound {
		t.Errorf("post to unknown channel returned %d, want 404", rr.Code)
	}

	if rr, _ := fetchMessages(t, 42, ownerID); rr.Code != http.StatusNotFound {
		t.Errorf("fetch from unknown channel returned %d, want 404", rr.Code)
	}
}

func TestDeleteMessage(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	memberID := createTestUser(t, "member")
	server := createTestServer(t, ownerID, "Regrets")
	if rr := joinTestServer(t, server.InviteCode, memberID); rr.Code != http.StatusOK {
		t.Fatal("join failed")
	}
	detail, _ := fetchServerDetail(t, server.ID, ownerID)
	channelID := detail.Channels[0].ID

	_, msg := postMessage(t, channelID, memberID, "delete me")
	postMessage(t, channelID, ownerID, "keep me")

	// only the sender can delete
	req := authedRequest(t, "POST", fmt.Sprintf("/api/message/delete?messageID=%d", msg.ID), nil, ownerID)
	if rr := doRequest(req); rr.Code != http.StatusNotFound {
		t.Errorf("delete of someone else's message returned %d, want 404", rr.Code)
	}

	req = authedRequest(t, "POST", fmt.Sprintf("/api/message/delete?messageID=%d", msg.ID), nil, memberID)
	if rr := doRequest(req); rr.Code != http.StatusOK {
		t.Fatalf("delete returned %d", rr.Code)
	}

	_, messages := fetchMessages(t, channelID, memberID)
	if len(messages) != 1 {
		t.Fatalf("message count after delete = %d, want 1", len(messages))
	}
	if messages[0].Content != "keep me" {
		t.Errorf("surviving message = %q", messages[0].Content)
	}

	// soft delete keeps the row
	var deleted bool
	if err := db.QueryRow("SELECT deleted FROM messages WHERE id = ?", msg.ID).Scan(&deleted); err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("deleted flag not set")
	}
}
