package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	fbstorage "firebase.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/pawbridge/console-backend/internal/logging"
	"github.com/pawbridge/console-backend/internal/utils/errors"
)

//Uploader Uploads bytes and resolves their public URL.
type Uploader interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

//Client Firebase Storage uploader.
type Client struct {
	bucket     *gcs.BucketHandle
	bucketName string
	timeout    time.Duration
}

//NewClient Creates uploader for the bucket.
func NewClient(client *fbstorage.Client, bucketName string, timeout time.Duration) (*Client, error) {
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, err
	}
	return &Client{bucket: bucket, bucketName: bucketName, timeout: timeout}, nil
}

//Upload Uploads data under objectPath and returns a tokenized download URL.
func (c *Client) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	logger := logging.FromContext(ctx).Named("storage.Upload")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token := uuid.New().String()

	w := c.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing %v: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing %v: %w", objectPath, err)
	}

	logger.Debugf("Uploaded %v (%d bytes)", objectPath, len(data))

	return DownloadURL(c.bucketName, objectPath, token), nil
}

//DownloadURL Public URL of an object carrying a download token.
func DownloadURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}

//MockClient Keeps uploads in memory.
type MockClient struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error
}

//Upload Stores the object and returns memory:// URL.
func (c *MockClient) Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Objects == nil {
		c.Objects = map[string][]byte{}
	}
	c.Objects[objectPath] = append([]byte(nil), data...)
	return "memory://" + objectPath, nil
}

//Image Image submitted with a form. Data is base64 in JSON.
type Image struct {
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	Data        []byte `json:"data" validate:"required"`
}

//UploadImage Checks the image and uploads it as {prefix}{millis}_{name}.
func UploadImage(ctx context.Context, uploader Uploader, prefix string, millis int64, image *Image) (string, error) {
	if !strings.HasPrefix(image.ContentType, "image/") {
		return "", &errors.ValidationError{Field: "image", Msg: fmt.Sprintf("image must be an image, not %v", image.ContentType)}
	}
	if len(image.Data) == 0 {
		return "", &errors.ValidationError{Field: "image", Msg: "image is empty"}
	}

	name := strings.ReplaceAll(path.Base(strings.ReplaceAll(image.Name, "\\", "/")), " ", "_")
	objectPath := fmt.Sprintf("%s%d_%s", prefix, millis, name)

	link, err := uploader.Upload(ctx, objectPath, image.ContentType, image.Data)
	if err != nil {
		return "", errors.Remote("uploading image", err)
	}
	return link, nil
}
