// Package permissions is the single place authority gets decided. Handlers
// pass in the server owner, the caller's resolved roles and the capability
// they need; nothing outside this package compares owner IDs or walks role
// lists on its own.
package permissions

import (
	"strings"

	"campushub-backend/internal/models"
)

const (
	Administrator  = "ADMINISTRATOR"
	ManageServer   = "MANAGE_SERVER"
	ManageChannels = "MANAGE_CHANNELS"
	KickMembers    = "KICK_MEMBERS"
	BanMembers     = "BAN_MEMBERS"
	CreateInvite   = "CREATE_INVITE"
	ViewChannels   = "VIEW_CHANNELS"
	SendMessages   = "SEND_MESSAGES"
)

// Can reports whether userID may perform an action requiring capability on a
// server owned by ownerID. The owner is granted unconditionally, ownership is
// an authority channel independent of roles. memberRoles is nil when the
// caller holds no membership, which always denies.
func Can(userID int64, ownerID int64, memberRoles []models.Role, capability string) bool {
	if userID == ownerID {
		return true
	}

	for _, role := range memberRoles {
		for _, perm := range role.Permissions {
			if perm == Administrator || perm == capability {
				return true
			}
		}
	}

	return false
}

// Join and Split convert between the []string form and the comma separated
// column value in server_roles.permissions.

func Join(perms []string) string {
	return strings.Join(perms, ",")
}

func Split(column string) []string {
	if column == "" {
		return []string{}
	}
	return strings.Split(column, ",")
}
