package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"campushub-backend/internal/models"
	"campushub-backend/internal/permissions"
	"campushub-backend/internal/snowflake"
)

func CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type CreateInviteRequest struct {
		MaxUses          int `json:"maxUses" validate:"min=0"`
		ExpiresInSeconds int `json:"expiresInSeconds" validate:"min=0"`
	}

	var request CreateInviteRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(request); err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
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

	member, err := isMember(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !member && server.OwnerID != userID {
		http.Error(w, "Access Denied", http.StatusForbidden)
		return
	}

	allowed, err := can(userID, server, permissions.CreateInvite)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Missing Permission: CREATE_INVITE", http.StatusForbidden)
		return
	}

	inviteID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	invite := models.Invite{
		ID:        inviteID,
		Code:      generateInviteCode(),
		ServerID:  serverID,
		InviterID: userID,
		MaxUses:   request.MaxUses,
		CreatedAt: time.Now().UTC(),
	}

	if request.ExpiresInSeconds > 0 {
		expiresAt := time.Now().UTC().Add(time.Duration(request.ExpiresInSeconds) * time.Second)
		invite.ExpiresAt = &expiresAt
	}

	_, err = db.Exec(`
		INSERT INTO invites (id, code, server_id, inviter_id, uses, max_uses, expires_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		invite.ID, invite.Code, invite.ServerID, invite.InviterID, invite.MaxUses, invite.ExpiresAt)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, invite)
}

func GetInviteList(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	member, err := isMemberCached(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "Access Denied", http.StatusForbidden)
		return
	}

	rows, err := db.Query(`
		SELECT id, code, server_id, inviter_id, uses, max_uses, expires_at, created_at
		FROM invites WHERE server_id = ?`, serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	invites := []models.Invite{}

	for rows.Next() {
		var invite models.Invite
		err := rows.Scan(&invite.ID, &invite.Code, &invite.ServerID, &invite.InviterID,
			&invite.Uses, &invite.MaxUses, &invite.ExpiresAt, &invite.CreatedAt)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		invites = append(invites, invite)
	}

	if err := rows.Err(); err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invites)
}

// RedeemInvite consumes one use of an invite record and joins the caller.
// The use count is taken with a guarded UPDATE so two redemptions racing for
// the last use can never both succeed.
func RedeemInvite(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	type RedeemRequest struct {
		Code string `json:"code"`
	}

	var request RedeemRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.Code == "" {
		http.Error(w, "Invite code required", http.StatusBadRequest)
		return
	}

	var inviteID, serverID int64
	var expiresAt *time.Time
	err = db.QueryRow("SELECT id, server_id, expires_at FROM invites WHERE code = ?", request.Code).Scan(&inviteID, &serverID, &expiresAt)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid invite code", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	if expiresAt != nil && time.Now().UTC().After(expiresAt.UTC()) {
		http.Error(w, "Invite is expired or has no uses left", http.StatusBadRequest)
		return
	}

	banned, err := isBanned(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if banned {
		http.Error(w, "You are banned from this server", http.StatusForbidden)
		return
	}

	type RedeemResponse struct {
		Message  string `json:"message"`
		ServerID int64  `json:"serverID,string"`
	}

	// existing members don't consume a use
	alreadyMember, err := isMember(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if alreadyMember {
		writeJSON(w, http.StatusOK, RedeemResponse{Message: "Already a member", ServerID: serverID})
		return
	}

	// expiry was checked above; the guard here only has to protect the use
	// count, which is the part two racing redemptions can corrupt
	result, err := db.Exec(`
		UPDATE invites SET uses = uses + 1
		WHERE id = ? AND (max_uses <= 0 OR uses < max_uses)`, inviteID)
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
		http.Error(w, "Invite is expired or has no uses left", http.StatusBadRequest)
		return
	}

	joined, status, err := joinMember(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if status == http.StatusForbidden {
		http.Error(w, "You are banned from this server", status)
		return
	}

	message := "Joined successfully"
	if !joined {
		message = "Already a member"
	}

	writeJSON(w, http.StatusOK, RedeemResponse{Message: message, ServerID: serverID})
}
