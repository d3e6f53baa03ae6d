package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"campushub-backend/internal/models"
	"campushub-backend/internal/permissions"
	"campushub-backend/internal/snowflake"
)

// CreateChannel requires MANAGE_CHANNELS by default. Deployments that want
// the looser any-member policy opt in through AnyMemberCreatesChannels;
// membership is still required either way.
func CreateChannel(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	type CreateChannelRequest struct {
		Name     string `json:"name" validate:"max=100"`
		Type     string `json:"type" validate:"omitempty,oneof=text audio video"`
		Category string `json:"categoryID"`
	}

	var request CreateChannelRequest
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

	if !cfg.AnyMemberCreatesChannels {
		allowed, err := can(userID, server, permissions.ManageChannels)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, "Missing Permission: MANAGE_CHANNELS", http.StatusForbidden)
			return
		}
	}

	if request.Name == "" {
		request.Name = "new-channel"
	}
	if request.Type == "" {
		request.Type = "text"
	}
	if request.Category == "" {
		request.Category = "General"
	}

	channelID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// new channels go to the end of the list
	var position int
	err = db.QueryRow("SELECT COALESCE(MAX(position)+1, 0) FROM channels WHERE server_id = ?", serverID).Scan(&position)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = db.Exec(`
		INSERT INTO channels (id, server_id, name, type, category, position, creator_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		channelID, serverID, request.Name, request.Type, request.Category, position, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	var channel models.Channel
	err = db.QueryRow(`
		SELECT id, server_id, name, type, category, position, is_private, creator_id, created_at, updated_at
		FROM channels WHERE id = ?`, channelID).
		Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Type, &channel.Category,
			&channel.Position, &channel.IsPrivate, &channel.CreatorID, &channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, channel)
}

// listChannels returns a server's channels in display order, position first
// and creation order breaking ties.
func listChannels(serverID int64) ([]models.Channel, error) {
	rows, err := db.Query(`
		SELECT id, server_id, name, type, category, position, is_private, creator_id, created_at, updated_at
		FROM channels WHERE server_id = ? ORDER BY position ASC, id ASC`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []models.Channel{}

	for rows.Next() {
		var channel models.Channel
		err := rows.Scan(&channel.ID, &channel.ServerID, &channel.Name, &channel.Type, &channel.Category,
			&channel.Position, &channel.IsPrivate, &channel.CreatorID, &channel.CreatedAt, &channel.UpdatedAt)
		if err != nil {
			return nil, err
		}

		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

func GetChannelList(w http.ResponseWriter, r *http.Request) {
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

	channels, err := listChannels(serverID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, channels)
}
