package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// AssetStore keeps uploaded files (faculty photos, student documents) and
// hands back a public URL for each.
type AssetStore interface {
	Upload(ctx context.Context, folder, publicID string, r io.Reader) (string, error)
	Delete(ctx context.Context, assetURL string) error
}

var ErrAssetsDisabled = errors.New("file uploads are not configured")

// Cloudinary stores assets under a common root folder.
type Cloudinary struct {
	cld  *cloudinary.Cloudinary
	root string
}

func NewCloudinary(cloudName, apiKey, apiSecret, root string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %v", err)
	}
	return &Cloudinary{cld: cld, root: root}, nil
}

// NewAssetStore returns a Cloudinary store, or a disabled one when the
// credentials are not set.
func NewAssetStore(cloudName, apiKey, apiSecret, root string) (AssetStore, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return DisabledAssets{}, nil
	}
	return NewCloudinary(cloudName, apiKey, apiSecret, root)
}

func (c *Cloudinary) Upload(ctx context.Context, folder, publicID string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   path.Join(c.root, folder),
		PublicID: publicID,
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %v", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload error: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// Delete removes the asset behind a delivery URL.
func (c *Cloudinary) Delete(ctx context.Context, assetURL string) error {
	publicID, err := extractPublicID(assetURL)
	if err != nil {
		return fmt.Errorf("could not extract public ID: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// extractPublicID turns
// https://res.cloudinary.com/demo/image/upload/v1234567890/newvision/faculty/abc123.jpg
// into newvision/faculty/abc123.
func extractPublicID(assetURL string) (string, error) {
	parsed, err := url.Parse(assetURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	start := -1
	for i, p := range parts {
		if p == "upload" {
			start = i + 1
			break
		}
	}
	if start < 0 || start >= len(parts) {
		return "", fmt.Errorf("invalid cloudinary URL format")
	}
	rest := parts[start:]
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	joined := path.Join(rest...)
	return strings.TrimSuffix(joined, path.Ext(joined)), nil
}

// DisabledAssets rejects uploads and ignores deletes.
type DisabledAssets struct{}

func (DisabledAssets) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrAssetsDisabled
}

func (DisabledAssets) Delete(context.Context, string) error {
	return nil
}
