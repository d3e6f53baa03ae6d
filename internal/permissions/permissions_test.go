package permissions_test

import (
	"testing"

	"campushub-backend/internal/models"
	"campushub-backend/internal/permissions"
)

func TestCan(t *testing.T) {
	adminRole := models.Role{
		Name:        "Admin",
		Permissions: []string{permissions.Administrator},
		Position:    999,
	}
	memberRole := models.Role{
		Name:        "Member",
		Permissions: []string{permissions.ViewChannels, permissions.SendMessages},
		Position:    0,
	}
	modRole := models.Role{
		Name:        "Moderator",
		Permissions: []string{permissions.KickMembers, permissions.BanMembers},
		Position:    5,
	}

	tests := []struct {
		name       string
		userID     int64
		ownerID    int64
		roles      []models.Role
		capability string
		want       bool
	}{
		{
			name:       "owner is granted without any roles",
			userID:     1,
			ownerID:    1,
			roles:      nil,
			capability: permissions.BanMembers,
			want:       true,
		},
		{
			name:       "owner grant is not shadowed by a plain role",
			userID:     1,
			ownerID:    1,
			roles:      []models.Role{memberRole},
			capability: permissions.ManageServer,
			want:       true,
		},
		{
			name:       "non-member is denied",
			userID:     2,
			ownerID:    1,
			roles:      nil,
			capability: permissions.SendMessages,
			want:       false,
		},
		{
			name:       "administrator wildcard implies every capability",
			userID:     2,
			ownerID:    1,
			roles:      []models.Role{adminRole},
			capability: permissions.ManageChannels,
			want:       true,
		},
		{
			name:       "explicit capability on any held role grants",
			userID:     2,
			ownerID:    1,
			roles:      []models.Role{memberRole, modRole},
			capability: permissions.KickMembers,
			want:       true,
		},
		{
			name:       "member without the capability is denied",
			userID:     2,
			ownerID:    1,
			roles:      []models.Role{memberRole},
			capability: permissions.BanMembers,
			want:       false,
		},
		{
			name:       "empty permission list denies",
			userID:     2,
			ownerID:    1,
			roles:      []models.Role{{Name: "Muted", Permissions: []string{}}},
			capability: permissions.SendMessages,
			want:       false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := permissions.Can(tc.userID, tc.ownerID, tc.roles, tc.capability)
			if got != tc.want {
				t.Errorf("Can(%d, %d, %v, %q) = %t, want %t", tc.userID, tc.ownerID, tc.roles, tc.capability, got, tc.want)
			}
		})
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	perms := []string{permissions.ViewChannels, permissions.SendMessages}

	column := permissions.Join(perms)
	got := permissions.Split(column)

	if len(got) != len(perms) {
		t.Fatalf("Split(Join(%v)) = %v, want %v", perms, got, perms)
	}
	for i := range perms {
		if got[i] != perms[i] {
			t.Errorf("Split(Join(%v))[%d] = %q, want %q", perms, i, got[i], perms[i])
		}
	}
}

func TestSplitEmptyColumn(t *testing.T) {
	got := permissions.Split("")
	if len(got) != 0 {
		t.Errorf("Split(\"\") = %v, want empty slice", got)
	}
}
