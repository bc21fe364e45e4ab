package models

import "time"

type User struct {
	ID                    string
	Username              string
	Email                 string
	FullName              string
	PasswordHash          []byte
	AvatarURL             string
	CoverImageURL         *string
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Sanitized strips the credential fields that must never leave the server.
func (u User) Sanitized() User {
	u.PasswordHash = nil
	u.RefreshToken = nil
	u.RefreshTokenExpiresAt = nil
	return u
}

type UploadKind string

const (
	UploadKindAvatar UploadKind = "avatar"
	UploadKindCover  UploadKind = "cover"
)

type UploadStatus string

const (
	UploadStatusActive     UploadStatus = "active"
	UploadStatusSuperseded UploadStatus = "superseded"
)

// Upload tracks an object stored for a user so that replaced avatar and
// cover images can be purged later.
type Upload struct {
	ID          string
	UserID      string
	Kind        UploadKind
	Bucket      string
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	Status      UploadStatus
	CreatedAt   time.Time
}
