package models

import "time"

type User struct {
	ID          int64  `json:"id,string,omitempty"`
	Email       string `json:"email,omitempty"`
	UserName    string `json:"userName,omitempty"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
	Password    []byte `json:"-"`
}

type Server struct {
	ID          int64     `json:"id,string"`
	OwnerID     int64     `json:"ownerID,string"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	InviteCode  string    `json:"inviteCode"`
	Rules       string    `json:"rules"`
	Visibility  string    `json:"visibility"`
	Roles       []Role    `json:"roles,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Role is a named capability bundle belonging to a single server.
// Members reference roles by ID through the member_roles table.
type Role struct {
	ID          int64    `json:"id,string"`
	ServerID    int64    `json:"serverID,string"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	Permissions []string `json:"permissions"`
	Position    int      `json:"position"`
}

type Channel struct {
	ID        int64     `json:"id,string"`
	ServerID  int64     `json:"serverID,string"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Category  string    `json:"categoryID"`
	Position  int       `json:"position"`
	IsPrivate bool      `json:"isPrivate"`
	CreatorID int64     `json:"creatorID,string"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ServerMember struct {
	ID            int64     `json:"id,string"`
	ServerID      int64     `json:"serverID,string"`
	UserID        int64     `json:"userID,string"`
	Nickname      string    `json:"nickname,omitempty"`
	RulesAccepted bool      `json:"rulesAccepted"`
	JoinedAt      time.Time `json:"joinedAt"`
	Roles         []Role    `json:"roles,omitempty"`
	User          User      `json:"user"`
}

type ServerBan struct {
	ID         int64     `json:"id,string"`
	ServerID   int64     `json:"serverID,string"`
	UserID     int64     `json:"userID,string"`
	Reason     string    `json:"reason"`
	BannedByID int64     `json:"bannedByID,string"`
	BannedAt   time.Time `json:"bannedAt"`
}

type Invite struct {
	ID        int64      `json:"id,string"`
	Code      string     `json:"code"`
	ServerID  int64      `json:"serverID,string"`
	InviterID int64      `json:"inviterID,string"`
	Uses      int        `json:"uses"`
	MaxUses   int        `json:"maxUses"` // 0 = unlimited
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Message struct {
	ID        int64     `json:"id,string"`
	ChannelID int64     `json:"channelID,string"`
	MemberID  int64     `json:"memberID,string"`
	SenderID  int64     `json:"senderID,string"`
	Content   string    `json:"content"`
	FileUrl   string    `json:"fileUrl"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    User      `json:"sender"`
}

type Notification struct {
	ID          int64     `json:"id,string"`
	UserID      int64     `json:"userID,string"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Icon        string    `json:"icon"`
	ActionUrl   string    `json:"actionUrl"`
	RelatedID   int64     `json:"relatedID,string"`
	RelatedType string    `json:"relatedType"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ConfigFile struct {
	Address                  string
	Port                     string
	BehindNginx              bool
	Cors                     bool
	TlsCert                  string
	TlsKey                   string
	PrintHttpRequests        bool
	LogToFile                bool
	LogLevel                 string
	JwtSecret                string
	SnowflakeWorkerID        int64
	SelfContained            bool
	AnyMemberCreatesChannels bool
	DbUser                   string
	DbPassword               string
	DbAddress                string
	DbPort                   string
	DbDatabase               string
	RedisAddress             string
	RedisPassword            string
}
