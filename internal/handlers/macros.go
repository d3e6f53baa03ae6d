package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"campushub-backend/internal/keyValue"
	"campushub-backend/internal/models"
	"campushub-backend/internal/permissions"
	"campushub-backend/internal/snowflake"

	"github.com/google/uuid"
)

func ctxUserID(r *http.Request) int64 {
	return r.Context().Value(UserIDKeyType{}).(int64)
}

func parseQueryID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		sugar.Error(err)
	}
}

// isDuplicateKey matches unique constraint violations from both drivers so
// racing inserts can be collapsed into idempotent responses.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "Duplicate entry")
}

func generateInviteCode() string {
	return uuid.New().String()[:8]
}

func getServer(serverID int64) (models.Server, error) {
	var server models.Server
	err := db.QueryRow(`
		SELECT id, owner_id, name, description, icon, invite_code, rules, visibility, created_at, updated_at
		FROM servers WHERE id = ?`, serverID).
		Scan(&server.ID, &server.OwnerID, &server.Name, &server.Description, &server.Icon,
			&server.InviteCode, &server.Rules, &server.Visibility, &server.CreatedAt, &server.UpdatedAt)
	return server, err
}

func scanRoles(rows *sql.Rows) ([]models.Role, error) {
	roles := []models.Role{}
	for rows.Next() {
		var role models.Role
		var perms string
		err := rows.Scan(&role.ID, &role.ServerID, &role.Name, &role.Color, &perms, &role.Position)
		if err != nil {
			return nil, err
		}
		role.Permissions = permissions.Split(perms)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func getServerRoles(serverID int64) ([]models.Role, error) {
	rows, err := db.Query(`
		SELECT id, server_id, name, color, permissions, position
		FROM server_roles WHERE server_id = ? ORDER BY position DESC, id`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

func getMemberRoles(memberID int64) ([]models.Role, error) {
	rows, err := db.Query(`
		SELECT r.id, r.server_id, r.name, r.color, r.permissions, r.position
		FROM server_roles r
		JOIN member_roles mr ON mr.role_id = r.id
		WHERE mr.member_id = ? ORDER BY r.position DESC, r.id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

// getMember returns the caller's membership row, or sql.ErrNoRows when the
// user never joined the server.
func getMember(serverID int64, userID int64) (models.ServerMember, error) {
	var member models.ServerMember
	var nickname sql.NullString
	err := db.QueryRow(`
		SELECT id, server_id, user_id, nickname, rules_accepted, joined_at
		FROM server_members WHERE server_id = ? AND user_id = ?`, serverID, userID).
		Scan(&member.ID, &member.ServerID, &member.UserID, &nickname, &member.RulesAccepted, &member.JoinedAt)
	if err != nil {
		return member, err
	}
	member.Nickname = nickname.String

	member.Roles, err = getMemberRoles(member.ID)
	return member, err
}

func isMember(serverID int64, userID int64) (bool, error) {
	var found bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?)", serverID, userID).Scan(&found)
	return found, err
}

func membershipCacheKey(serverID int64, userID int64) string {
	return fmt.Sprintf("membership:%d:%d", serverID, userID)
}

// isMemberCached is the read-path variant of isMember. Mutating handlers
// always hit the database; list endpoints may trust the cache, which
// moderation invalidates on removal.
func isMemberCached(serverID int64, userID int64) (bool, error) {
	key := membershipCacheKey(serverID, userID)

	value, err := keyValue.Get(key)
	if err != nil {
		return false, err
	}
	if value == "y" {
		return true, nil
	}

	found, err := isMember(serverID, userID)
	if err != nil {
		return false, err
	}
	if found {
		err = keyValue.Set(key, "y", 15*time.Minute)
		if err != nil {
			return false, err
		}
	}
	return found, nil
}

func invalidateMembership(serverID int64, userID int64) {
	err := keyValue.Delete(membershipCacheKey(serverID, userID))
	if err != nil {
		sugar.Error(err)
	}
}

func isBanned(serverID int64, userID int64) (bool, error) {
	var banned bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM server_bans WHERE server_id = ? AND user_id = ?)", serverID, userID).Scan(&banned)
	return banned, err
}

// can is the only authority check handlers use. It resolves the caller's
// roles against the server and defers the decision to the permissions package.
func can(userID int64, server models.Server, capability string) (bool, error) {
	if userID == server.OwnerID {
		return true, nil
	}

	member, err := getMember(server.ID, userID)
	if err == sql.ErrNoRows {
		return permissions.Can(userID, server.OwnerID, nil, capability), nil
	} else if err != nil {
		return false, err
	}

	return permissions.Can(userID, server.OwnerID, member.Roles, capability), nil
}

// addServerMember creates the membership row and attaches the server's
// lowest-position role. A duplicate key means the user joined concurrently,
// which callers treat as already-a-member.
func addServerMember(tx *sql.Tx, serverID int64, userID int64) (int64, error) {
	memberID, err := snowflake.Generate()
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec("INSERT INTO server_members (id, server_id, user_id) VALUES (?, ?, ?)", memberID, serverID, userID)
	if err != nil {
		return 0, err
	}

	var defaultRoleID int64
	err = tx.QueryRow("SELECT id FROM server_roles WHERE server_id = ? ORDER BY position ASC, id LIMIT 1", serverID).Scan(&defaultRoleID)
	if err == sql.ErrNoRows {
		return memberID, nil
	} else if err != nil {
		return 0, err
	}

	_, err = tx.Exec("INSERT INTO member_roles (member_id, role_id) VALUES (?, ?)", memberID, defaultRoleID)
	if err != nil {
		return 0, err
	}

	return memberID, nil
}
