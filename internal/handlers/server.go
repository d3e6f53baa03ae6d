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

// CreateServer seeds a new community: the server row, the Admin and Member
// roles, the general channel and the owner's membership all commit in one
// transaction so a failure can't leave a half-built server behind.
func CreateServer(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	type CreateServerRequest struct {
		Name        string `json:"name" validate:"required,max=64"`
		Description string `json:"description" validate:"max=1024"`
		Icon        string `json:"icon"`
	}

	var request CreateServerRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.Name == "" {
		http.Error(w, "Server name is required", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(request); err != nil {
		sugar.Debug(err)
		http.Error(w, "Server name is required", http.StatusBadRequest)
		return
	}

	serverID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	adminRoleID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	memberRoleID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	channelID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	inviteCode := generateInviteCode()

	tx, err := db.Begin()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO servers (id, owner_id, name, description, icon, invite_code, rules, visibility)
		VALUES (?, ?, ?, ?, ?, ?, '', 'public')`,
		serverID, userID, request.Name, request.Description, request.Icon, inviteCode)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO server_roles (id, server_id, name, color, permissions, position)
		VALUES (?, ?, 'Admin', '#ff0000', ?, 999)`,
		adminRoleID, serverID, permissions.Join([]string{permissions.Administrator}))
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO server_roles (id, server_id, name, color, permissions, position)
		VALUES (?, ?, 'Member', '#99aab5', ?, 0)`,
		memberRoleID, serverID, permissions.Join([]string{permissions.ViewChannels, permissions.SendMessages}))
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO channels (id, server_id, name, type, category, position, creator_id)
		VALUES (?, ?, 'general', 'text', 'General', 0, ?)`,
		channelID, serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	memberID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = tx.Exec("INSERT INTO server_members (id, server_id, user_id) VALUES (?, ?, ?)", memberID, serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// the owner membership carries the Admin role
	_, err = tx.Exec("INSERT INTO member_roles (member_id, role_id) VALUES (?, ?)", memberID, adminRoleID)
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

	server, err := getServer(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	server.Roles, err = getServerRoles(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	type CreateServerResponse struct {
		Server      models.Server `json:"server"`
		RedirectUrl string        `json:"redirectUrl"`
	}

	writeJSON(w, http.StatusCreated, CreateServerResponse{
		Server:      server,
		RedirectUrl: fmt.Sprintf("/servers/%d/channels/%d", serverID, channelID),
	})
}

func GetServerList(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	rows, err := db.Query(`
		SELECT s.id, s.owner_id, s.name, s.description, s.icon, s.invite_code, s.rules, s.visibility, s.created_at, s.updated_at
		FROM servers s JOIN server_members m ON s.id = m.server_id
		WHERE m.user_id = ?`, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	servers := []models.Server{}

	for rows.Next() {
		var server models.Server
		err := rows.Scan(&server.ID, &server.OwnerID, &server.Name, &server.Description, &server.Icon,
			&server.InviteCode, &server.Rules, &server.Visibility, &server.CreatedAt, &server.UpdatedAt)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

// DiscoverServers lists public servers the caller has not joined yet.
func DiscoverServers(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	rows, err := db.Query(`
		SELECT s.id, s.owner_id, s.name, s.description, s.icon, s.invite_code, s.rules, s.visibility, s.created_at, s.updated_at
		FROM servers s
		WHERE s.visibility = 'public'
		AND NOT EXISTS (SELECT 1 FROM server_members m WHERE m.server_id = s.id AND m.user_id = ?)
		LIMIT 20`, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	servers := []models.Server{}

	for rows.Next() {
		var server models.Server
		err := rows.Scan(&server.ID, &server.OwnerID, &server.Name, &server.Description, &server.Icon,
			&server.InviteCode, &server.Rules, &server.Visibility, &server.CreatedAt, &server.UpdatedAt)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

// GetServer returns the detail view: the server with its roles, the channel
// list in display order and the caller's own membership.
func GetServer(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	member, err := getMember(serverID, userID)
	if err == sql.ErrNoRows {
		http.Error(w, "Access Denied", http.StatusForbidden)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
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

	server.Roles, err = getServerRoles(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	channels, err := listChannels(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	type ServerDetailResponse struct {
		Server   models.Server       `json:"server"`
		Channels []models.Channel    `json:"channels"`
		Member   models.ServerMember `json:"member"`
	}

	writeJSON(w, http.StatusOK, ServerDetailResponse{
		Server:   server,
		Channels: channels,
		Member:   member,
	})
}

// UpdateServer applies a partial update. Only the fields present in the body
// change; everything else keeps its stored value.
func UpdateServer(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type UpdateServerRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Icon        *string `json:"icon"`
		Rules       *string `json:"rules"`
	}

	var request UpdateServerRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
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

	allowed, err := can(userID, server, permissions.ManageServer)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Insufficient Permissions", http.StatusForbidden)
		return
	}

	if request.Name != nil {
		if *request.Name == "" {
			http.Error(w, "Server name can't be empty", http.StatusBadRequest)
			return
		}
		server.Name = *request.Name
	}
	if request.Description != nil {
		server.Description = *request.Description
	}
	if request.Icon != nil {
		server.Icon = *request.Icon
	}
	if request.Rules != nil {
		server.Rules = *request.Rules
	}

	_, err = db.Exec(`
		UPDATE servers SET name = ?, description = ?, icon = ?, rules = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		server.Name, server.Description, server.Icon, server.Rules, serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	server, err = getServer(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

// DeleteServer removes the server; channels, members, roles, invites, bans
// and messages all go with it through the cascading foreign keys.
func DeleteServer(w http.ResponseWriter, r *http.Request) {
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

	allowed, err := can(userID, server, permissions.ManageServer)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "Insufficient Permissions", http.StatusForbidden)
		return
	}

	_, err = db.Exec("DELETE FROM servers WHERE id = ?", serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Server deleted successfully"})
}

// TransferOwnership hands the server to another member. This is owner-only,
// an Admin role is not enough, and the target must already be a member.
func TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type TransferRequest struct {
		NewOwnerID int64 `json:"newOwnerID,string"`
	}

	var request TransferRequest
	err = json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.NewOwnerID == 0 {
		http.Error(w, "New Owner ID required", http.StatusBadRequest)
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

	if server.OwnerID != userID {
		http.Error(w, "Only owner can transfer ownership", http.StatusForbidden)
		return
	}

	targetIsMember, err := isMember(serverID, request.NewOwnerID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !targetIsMember {
		http.Error(w, "Target user is not a member of this server", http.StatusBadRequest)
		return
	}

	_, err = db.Exec("UPDATE servers SET owner_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", request.NewOwnerID, serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	notify.Emit(models.Notification{
		UserID:      request.NewOwnerID,
		Type:        "ownership_transfer",
		Title:       "You now own " + server.Name,
		Message:     fmt.Sprintf("Ownership of %s was transferred to you.", server.Name),
		ActionUrl:   fmt.Sprintf("/servers/%d", serverID),
		RelatedID:   serverID,
		RelatedType: "server",
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Ownership transferred successfully"})
}
