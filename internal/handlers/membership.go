package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"campushub-backend/internal/models"
	"campushub-backend/internal/notify"
	"campushub-backend/internal/permissions"
	"campushub-backend/internal/snowflake"
)

// JoinServer redeems a server-level invite code. Joining a server the caller
// already belongs to is a success, not an error; banned users are rejected
// before any membership row is written.
func JoinServer(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	type JoinRequest struct {
		InviteCode string `json:"inviteCode"`
	}

	var request JoinRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.InviteCode == "" {
		http.Error(w, "Invite code required", http.StatusBadRequest)
		return
	}

	var serverID int64
	err = db.QueryRow("SELECT id FROM servers WHERE invite_code = ?", request.InviteCode).Scan(&serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid invite code", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	joined, status, err := joinMember(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if status != 0 {
		switch status {
		case http.StatusForbidden:
			http.Error(w, "You are banned from this server", status)
		}
		return
	}

	type JoinResponse struct {
		Message  string `json:"message"`
		ServerID int64  `json:"serverID,string"`
	}

	message := "Joined successfully"
	if !joined {
		message = "Already a member"
	}

	writeJSON(w, http.StatusOK, JoinResponse{Message: message, ServerID: serverID})
}

// joinMember is the shared join path for invite codes and invite records.
// It returns joined=false when the caller already held a membership. A
// non-zero status means the join was rejected.
func joinMember(serverID int64, userID int64) (joined bool, status int, err error) {
	banned, err := isBanned(serverID, userID)
	if err != nil {
		return false, 0, err
	}
	if banned {
		return false, http.StatusForbidden, nil
	}

	alreadyMember, err := isMember(serverID, userID)
	if err != nil {
		return false, 0, err
	}
	if alreadyMember {
		return false, 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	_, err = addServerMember(tx, serverID, userID)
	if isDuplicateKey(err) {
		// lost a race against a concurrent join by the same user
		return false, 0, nil
	} else if err != nil {
		return false, 0, err
	}

	err = tx.Commit()
	if err != nil {
		return false, 0, err
	}

	return true, 0, nil
}

func LeaveServer(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	server, err := getServer(serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	if server.OwnerID == userID {
		http.Error(w, "Owner cannot leave server. Transfer ownership or delete the server.", http.StatusBadRequest)
		return
	}

	result, err := db.Exec("DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	}

	invalidateMembership(serverID, userID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Left server successfully"})
}

func KickMember(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type KickRequest struct {
		UserID int64 `json:"userID,string"`
	}

	var request KickRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.UserID == 0 {
		http.Error(w, "User ID required", http.StatusBadRequest)
		return
	}

	server, err := getServer(serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	allowed, err := can(userID, server, permissions.KickMembers)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Missing Permission: KICK_MEMBERS", http.StatusForbidden)
		return
	}

	// the owner is never a valid moderation target
	if server.OwnerID == request.UserID {
		http.Error(w, "Cannot kick server owner", http.StatusBadRequest)
		return
	}

	result, err := db.Exec("DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, request.UserID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	affected, err := result.RowsAffected()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	}

	invalidateMembership(serverID, request.UserID)

	notify.Emit(models.Notification{
		UserID:      request.UserID,
		Type:        "server_kick",
		Title:       "Removed from " + server.Name,
		Message:     fmt.Sprintf("You were removed from %s.", server.Name),
		ActionUrl:   "/servers",
		RelatedID:   serverID,
		RelatedType: "server",
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User kicked successfully"})
}

// BanMember writes the standing ban record and removes the membership in one
// transaction, so a crash can't leave a banned user still inside the server.
func BanMember(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type BanRequest struct {
		UserID int64  `json:"userID,string"`
		Reason string `json:"reason"`
	}

	var request BanRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.UserID == 0 {
		http.Error(w, "User ID required", http.StatusBadRequest)
		return
	}

	server, err := getServer(serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Server not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	allowed, err := can(userID, server, permissions.BanMembers)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Missing Permission: BAN_MEMBERS", http.StatusForbidden)
		return
	}

	if server.OwnerID == request.UserID {
		http.Error(w, "Cannot ban server owner", http.StatusBadRequest)
		return
	}

	banID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO server_bans (id, server_id, user_id, reason, banned_by_id) VALUES (?, ?, ?, ?, ?)",
		banID, serverID, request.UserID, request.Reason, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// ban implies kick
	_, err = tx.Exec("DELETE FROM server_members WHERE server_id = ? AND user_id = ?", serverID, request.UserID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	err = tx.Commit()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	invalidateMembership(serverID, request.UserID)

	notify.Emit(models.Notification{
		UserID:      request.UserID,
		Type:        "server_ban",
		Title:       "Banned from " + server.Name,
		Message:     fmt.Sprintf("You were banned from %s.", server.Name),
		ActionUrl:   "/servers",
		RelatedID:   serverID,
		RelatedType: "server",
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User banned successfully"})
}

func AcceptRules(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	member, err := getMember(serverID, userID)
	if err == sql.ErrNoRows {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// mysql reports zero affected rows when the flag is already set, so the
	// membership check above is what decides the 404
	_, err = db.Exec("UPDATE server_members SET rules_accepted = TRUE WHERE id = ?", member.ID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	member.RulesAccepted = true

	type AcceptRulesResponse struct {
		Message string              `json:"message"`
		Member  models.ServerMember `json:"member"`
	}

	writeJSON(w, http.StatusOK, AcceptRulesResponse{Message: "Rules accepted", Member: member})
}
