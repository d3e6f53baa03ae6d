// Package notify is the fire-and-forget notification sink. Moderation
// handlers emit into it on kick, ban and ownership transfer; the rest of the
// application reads the rows it writes. A failed emit is logged and swallowed,
// it never fails the request that triggered it.
package notify

import (
	"database/sql"

	"campushub-backend/internal/models"
	"campushub-backend/internal/snowflake"

	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var db *sql.DB

func Setup(_sugar *zap.SugaredLogger, _db *sql.DB) {
	sugar = _sugar
	db = _db
}

func Emit(n models.Notification) {
	id, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		return
	}

	if n.Icon == "" {
		n.Icon = "🔔"
	}

	_, err = db.Exec(`
		INSERT INTO notifications (id, user_id, type, title, message, icon, action_url, related_id, related_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, n.UserID, n.Type, n.Title, n.Message, n.Icon, n.ActionUrl, n.RelatedID, n.RelatedType)
	if err != nil {
		sugar.Errorf("Failed to emit notification for user ID [%d]: %v", n.UserID, err)
	}
}
