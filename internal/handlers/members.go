package handlers

import (
	"database/sql"
	"net/http"

	"campushub-backend/internal/models"
)

const memberFetchLimit = 100

// GetMemberList returns a server's members in join order with display info
// and resolved role data attached.
func GetMemberList(w http.ResponseWriter, r *http.Request) {
	userID := ctxUserID(r)

	serverID, err := parseQueryID(r, "serverID")
	if err != nil {
		http.Error(w, "Invalid server ID", http.StatusBadRequest)
		return
	}

	requesterIsMember, err := isMemberCached(serverID, userID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if !requesterIsMember {
		http.Error(w, "Access Denied", http.StatusForbidden)
		return
	}

	rows, err := db.Query(`
		SELECT m.id, m.server_id, m.user_id, m.nickname, m.rules_accepted, m.joined_at,
			u.display_name, u.picture
		FROM server_members m JOIN users u ON m.user_id = u.id
		WHERE m.server_id = ?
		ORDER BY m.joined_at ASC, m.id ASC
		LIMIT ?`, serverID, memberFetchLimit)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	members := []models.ServerMember{}

	for rows.Next() {
		var member models.ServerMember
		var nickname sql.NullString
		err := rows.Scan(&member.ID, &member.ServerID, &member.UserID, &nickname, &member.RulesAccepted,
			&member.JoinedAt, &member.User.DisplayName, &member.User.Picture)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
		member.Nickname = nickname.String
		member.User.ID = member.UserID

		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	// attach role display data after the main scan, rows can't be nested on
	// a single sqlite connection
	for i := range members {
		members[i].Roles, err = getMemberRoles(members[i].ID)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, members)
}
