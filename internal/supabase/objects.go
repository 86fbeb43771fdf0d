package supabase

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
)

const avatarBucket = "avatars"

// UploadAvatar stores the avatar bytes in the public avatar bucket and
// returns the public URL. Re-uploading for the same user overwrites the
// previous object.
func (c *Client) UploadAvatar(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	ext := extensionFor(contentType)
	objectPath := fmt.Sprintf("/storage/v1/object/%s/%s%s", avatarBucket, userID, ext)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+objectPath, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearerToken())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s%s", c.baseURL, avatarBucket, userID, ext), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
