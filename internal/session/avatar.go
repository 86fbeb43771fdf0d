package session

import (
	"context"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	"boltalka/internal/models"
)

// maxAvatarSize bounds avatar uploads to 2 MiB.
const maxAvatarSize = 2 << 20

// uploadAvatar sniffs the image type from the raw bytes and uploads the
// avatar to the platform file store, returning its public URL.
func (m *Manager) uploadAvatar(ctx context.Context, userID string, data []byte) (string, error) {
	if len(data) > maxAvatarSize {
		return "", &models.ValidationError{Field: "avatar", Reason: "image exceeds 2 MiB"}
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", &models.ValidationError{Field: "avatar", Reason: "unreadable image data"}
	}

	switch kind {
	case matchers.TypePng, matchers.TypeJpeg, matchers.TypeGif, matchers.TypeWebp:
	default:
		return "", &models.ValidationError{Field: "avatar", Reason: "unsupported image type (png, jpeg, gif or webp)"}
	}

	return m.files.UploadAvatar(ctx, userID, data, kind.MIME.Value)
}
