package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"campushub-backend/internal/models"
	"campushub-backend/internal/permissions"
)

func TestCreateServerBootstrap(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	server := createTestServer(t, ownerID, "CS Club")

	if server.Name != "CS Club" {
		t.Errorf("server name = %q, want %q", server.Name, "CS Club")
	}
	if server.OwnerID != ownerID {
		t.Errorf("server owner = %d, want %d", server.OwnerID, ownerID)
	}
	if len(server.InviteCode) != 8 {
		t.Errorf("invite code %q, want 8 characters", server.InviteCode)
	}

	if len(server.Roles) != 2 {
		t.Fatalf("seed roles = %d, want 2", len(server.Roles))
	}
	// roles come back position-descending: Admin first
	if server.Roles[0].Name != "Admin" || server.Roles[1].Name != "Member" {
		t.Errorf("seed roles = %q, %q, want Admin, Member", server.Roles[0].Name, server.Roles[1].Name)
	}
	if server.Roles[0].Permissions[0] != permissions.Administrator {
		t.Errorf("admin role permissions = %v, want [%s]", server.Roles[0].Permissions, permissions.Administrator)
	}

	detail, code := fetchServerDetail(t, server.ID, ownerID)
	if code != http.StatusOK {
		t.Fatalf("server detail returned %d", code)
	}
	if len(detail.Channels) != 1 || detail.Channels[0].Name != "general" {
		t.Fatalf("default channels = %v, want a single channel named general", detail.Channels)
	}
	if len(detail.Member.Roles) != 1 || detail.Member.Roles[0].Name != "Admin" {
		t.Errorf("owner membership roles = %v, want the Admin role", detail.Member.Roles)
	}
}

func TestCreateServerRequiresName(t *testing.T) {
	userID := createTestUser(t, "nameless")

	req := authedRequest(t, "POST", "/api/server/create", map[string]string{}, userID)
	rr := doRequest(req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("create server without name returned %d, want 400", rr.Code)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/server/fetch", nil)
	rr := doRequest(req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("request without JWT returned %d, want 401", rr.Code)
	}
}

func TestGetServerDetailRequiresMembership(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	strangerID := createTestUser(t, "stranger")
	server := createTestServer(t, ownerID, "Private Study Group")

	_, code := fetchServerDetail(t, server.ID, strangerID)
	if code != http.StatusForbidden {
		t.Errorf("detail for non-member returned %d, want 403", code)
	}

	rr := joinTestServer(t, server.InviteCode, strangerID)
	if rr.Code != http.StatusOK {
		t.Fatalf("join returned %d: %s", rr.Code, rr.Body.String())
	}

	detail, code := fetchServerDetail(t, server.ID, strangerID)
	if code != http.StatusOK {
		t.Fatalf("detail for member returned %d, want 200", code)
	}
	if detail.Member.UserID != strangerID {
		t.Errorf("detail member user = %d, want %d", detail.Member.UserID, strangerID)
	}
}

func TestServerListContainsJoined(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	server := createTestServer(t, ownerID, "Robotics")

	req := authedRequest(t, "GET", "/api/server/fetch", nil, ownerID)
	rr := doRequest(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("server list returned %d", rr.Code)
	}

	var servers []models.Server
	if err := json.Unmarshal(rr.Body.Bytes(), &servers); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, s := range servers {
		if s.ID == server.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("server %d missing from owner's server list", server.ID)
	}
}

func TestDiscoverExcludesJoined(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	otherID := createTestUser(t, "other")
	server := createTestServer(t, ownerID, "Discoverable")

	listServers := func(userID int64) []models.Server {
		req := authedRequest(t, "GET", "/api/server/discover", nil, userID)
		rr := doRequest(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("discover returned %d", rr.Code)
		}
		var servers []models.Server
		if err := json.Unmarshal(rr.Body.Bytes(), &servers); err != nil {
			t.Fatal(err)
		}
		return servers
	}

	for _, s := range listServers(ownerID) {
		if s.ID == server.ID {
			t.Errorf("discover for the owner includes their own server")
		}
	}

	found := false
	for _, s := range listServers(otherID) {
		if s.ID == server.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("discover for a non-member does not include the public server")
	}
}

func TestUpdateServerPermissions(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	memberID := createTestUser(t, "member")
	server := createTestServer(t, ownerID, "Before")

	rr := joinTestServer(t, server.InviteCode, memberID)
	if rr.Code != http.StatusOK {
		t.Fatal("join failed")
	}

	update := map[string]string{"name": "After"}

	req := authedRequest(t, "POST", fmt.Sprintf("/api/server/update?serverID=%d", server.ID), update, memberID)
	rr = doRequest(req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("update by plain member returned %d, want 403", rr.Code)
	}

	req = authedRequest(t, "POST", fmt.Sprintf("/api/server/update?serverID=%d", server.ID), update, ownerID)
	rr = doRequest(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update by owner returned %d: %s", rr.Code, rr.Body.String())
	}

	var updated models.Server
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Name != "After" {
		t.Errorf("updated name = %q, want %q", updated.Name, "After")
	}

	req = authedRequest(t, "POST", "/api/server/update?serverID=1", update, ownerID)
	rr = doRequest(req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("update of unknown server returned %d, want 404", rr.Code)
	}
}

func TestTransferOwnership(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	memberID := createTestUser(t, "member")
	strangerID := createTestUser(t, "stranger")
	server := createTestServer(t, ownerID, "Handover")

	if rr := joinTestServer(t, server.InviteCode, memberID); rr.Code != http.StatusOK {
		t.Fatal("join failed")
	}

	transfer := func(callerID int64, newOwnerID int64) *httptest.ResponseRecorder {
		body := map[string]string{"newOwnerID": fmt.Sprint(newOwnerID)}
		req := authedRequest(t, "POST", fmt.Sprintf("/api/server/transfer?serverID=%d", server.ID), body, callerID)
		return doRequest(req)
	}

	// target must already be a member
	if rr := transfer(ownerID, strangerID); rr.Code != http.StatusBadRequest {
		t.Errorf("transfer to non-member returned %d, want 400", rr.Code)
	}

	if rr := transfer(ownerID, memberID); rr.Code != http.StatusOK {
		t.Fatalf("transfer returned %d: %s", rr.Code, rr.Body.String())
	}

	// the old owner kept the Admin role but lost owner-only operations
	if rr := transfer(ownerID, ownerID); rr.Code != http.StatusForbidden {
		t.Errorf("transfer by former owner returned %d, want 403", rr.Code)
	}

	// the new owner needs no elevated role for owner operations
	update := map[string]string{"name": "Handover Done"}
	req := authedRequest(t, "POST", fmt.Sprintf("/api/server/update?serverID=%d", server.ID), update, memberID)
	if rr := doRequest(req); rr.Code != http.StatusOK {
		t.Errorf("update by new owner returned %d, want 200", rr.Code)
	}
}

func TestDeleteServerCascades(t *testing.T) {
	ownerID := createTestUser(t, "owner")
	server := createTestServer(t, ownerID, "Doomed")

	detail, _ := fetchServerDetail(t, server.ID, ownerID)
	channelID := detail.Channels[0].ID

	post := map[string]string{"channelID": fmt.Sprint(channelID), "content": "last words"}
	req := authedRequest(t, "POST", "/api/message/create", post, ownerID)
	if rr := doRequest(req); rr.Code != http.StatusCreated {
		t.Fatalf("message create returned %d", rr.Code)
	}

	req = authedRequest(t, "POST", fmt.Sprintf("/api/server/delete?serverID=%d", server.ID), nil, ownerID)
	if rr := doRequest(req); rr.Code != http.StatusOK {
		t.Fatalf("delete returned %d: %s", rr.Code, rr.Body.String())
	}

	counts := map[string]string{
		"channels": "SELECT COUNT(*) FROM channels WHERE server_id = ?",
		"members":  "SELECT COUNT(*) FROM server_members WHERE server_id = ?",
		"roles":    "SELECT COUNT(*) FROM server_roles WHERE server_id = ?",
	}
	for table, query := range counts {
		var count int
		if err := db.QueryRow(query, server.ID).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("%d orphaned %s rows after server delete", count, table)
		}
	}

	var orphanedMessages int
	err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE channel_id = ?", channelID).Scan(&orphanedMessages)
	if err != nil {
		t.Fatal(err)
	}
	if orphanedMessages != 0 {
		t.Errorf("%d orphaned messages after server delete", orphanedMessages)
	}
}
