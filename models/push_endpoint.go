package models

import "time"

// PushEndpoint represents one registered push delivery target (one per
// device/browser). Stored in MongoDB, keyed by user. Registered by the
// device-registration flow; removed here when the push transport reports the
// token as permanently invalid.
type PushEndpoint struct {
	UserID     uint      `bson:"user_id" json:"user_id"`
	DeviceID   string    `bson:"device_id" json:"device_id"`
	Token      string    `bson:"token" json:"token"`
	Platform   string    `bson:"platform" json:"platform"` // web, android, ios
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	LastSeenAt time.Time `bson:"last_seen_at" json:"last_seen_at"`
}
