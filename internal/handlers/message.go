package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"campushub-backend/internal/models"
	"campushub-backend/internal/snowflake"
)

const messageFetchLimit = 50

// CreateMessage appends a message to a channel. The row references the
// sender's membership, not the bare user, so provenance stays tied to the
// membership that existed when the message was sent.
func CreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	type AddMessageRequest struct {
		ChannelID int64  `json:"channelID,string"`
		Content   string `json:"content"`
		FileUrl   string `json:"fileUrl"`
	}

	var request AddMessageRequest
	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil || request.ChannelID == 0 {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if request.Content == "" && request.FileUrl == "" {
		http.Error(w, "Message content is required if no file is attached", http.StatusBadRequest)
		return
	}

	var serverID int64
	err = db.QueryRow("SELECT server_id FROM channels WHERE id = ?", request.ChannelID).Scan(&serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Channel not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
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

	messageID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = db.Exec(`
		INSERT INTO messages (id, channel_id, member_id, sender_id, content, file_url, deleted)
		VALUES (?, ?, ?, ?, ?, ?, FALSE)`,
		messageID, request.ChannelID, member.ID, userID, request.Content, request.FileUrl)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	var msg models.Message
	err = db.QueryRow(`
		SELECT m.id, m.channel_id, COALESCE(m.member_id, 0), m.sender_id, m.content, m.file_url, m.deleted, m.created_at,
			u.display_name, u.picture
		FROM messages m JOIN users u ON m.sender_id = u.id
		WHERE m.id = ?`, messageID).
		Scan(&msg.ID, &msg.ChannelID, &msg.MemberID, &msg.SenderID, &msg.Content, &msg.FileUrl,
			&msg.Deleted, &msg.CreatedAt, &msg.Sender.DisplayName, &msg.Sender.Picture)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	msg.Sender.ID = msg.SenderID

	writeJSON(w, http.StatusCreated, msg)
}

// GetMessageList returns the most recent 50 messages of a channel in
// ascending order. Snowflake IDs encode creation time, so ordering by ID is
// both chronological and stable across identical timestamps.
func GetMessageList(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	channelID, err := parseQueryID(r, "channelID")
	if err != nil {
		http.Error(w, "Invalid channel ID", http.StatusBadRequest)
		return
	}

	var serverID int64
	err = db.QueryRow("SELECT server_id FROM channels WHERE id = ?", channelID).Scan(&serverID)
	if err == sql.ErrNoRows {
		http.Error(w, "Channel not found", http.StatusNotFound)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
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
		SELECT m.id, m.channel_id, COALESCE(m.member_id, 0), m.sender_id, m.content, m.file_url, m.deleted, m.created_at,
			u.display_name, u.picture
		FROM messages m JOIN users u ON m.sender_id = u.id
		WHERE m.channel_id = ? AND m.deleted = FALSE
		ORDER BY m.id DESC
		LIMIT ?`, channelID, messageFetchLimit)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	messages := []models.Message{}

	for rows.Next() {
		var msg models.Message
		err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.MemberID, &msg.SenderID, &msg.Content, &msg.FileUrl,
			&msg.Deleted, &msg.CreatedAt, &msg.Sender.DisplayName, &msg.Sender.Picture)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		msg.Sender.ID = msg.SenderID

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// the query walked backwards from the newest message; flip to display order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	writeJSON(w, http.StatusOK, messages)
}

// DeleteMessage soft-deletes the caller's own message. The row stays for
// audit purposes but no longer shows up in fetches.
func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	messageID, err := parseQueryID(r, "messageID")
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}

	result, err := db.Exec("UPDATE messages SET deleted = TRUE WHERE id = ? AND sender_id = ?", messageID, userID)
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
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}
