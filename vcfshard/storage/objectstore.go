package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreConfig describes an S3-compatible endpoint.
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"useSSL"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

func (c ObjectStoreConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrMisconfigure)
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("%w: endpoint must not include scheme: %q", ErrMisconfigure, c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("%w: access key is required", ErrMisconfigure)
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("%w: secret key is required", ErrMisconfigure)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required", ErrMisconfigure)
	}
	return nil
}

// ObjectStoreHandler stores artifacts in an S3-compatible bucket. Object
// puts are all-or-nothing on the server side, which satisfies the
// no-partial-object guarantee without a rename step.
type ObjectStoreHandler struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewObjectStoreHandler(cfg ObjectStoreConfig) (*ObjectStoreHandler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating object store client: %v", ErrMisconfigure, err)
	}
	return &ObjectStoreHandler{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// NewObjectStoreHandlerWithClient is the test seam for a prebuilt client.
func NewObjectStoreHandlerWithClient(client *minio.Client, bucket, prefix string) (*ObjectStoreHandler, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: object store client is required", ErrMisconfigure)
	}
	return &ObjectStoreHandler{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (h *ObjectStoreHandler) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if h.prefix == "" {
		return p
	}
	return h.prefix + "/" + p
}

func (h *ObjectStoreHandler) Write(ctx context.Context, p string, data []byte) error {
	key := h.key(p)
	_, err := h.client.PutObject(ctx, h.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return h.classifyWrite(p, err)
	}
	slog.Debug("wrote object", "bucket", h.bucket, "key", key, "bytes", len(data))
	return nil
}

func (h *ObjectStoreHandler) classifyWrite(p string, err error) error {
	resp := minio.ToErrorResponse(err)
	permanent := resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusBadRequest ||
		resp.Code == "NoSuchBucket"
	return &WriteError{Path: p, Transient: !permanent, Err: err}
}

func (h *ObjectStoreHandler) Read(ctx context.Context, p string) ([]byte, error) {
	obj, err := h.client.GetObject(ctx, h.bucket, h.key(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, nil
}

func (h *ObjectStoreHandler) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := h.key(prefix)
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	var paths []string
	for obj := range h.client.ListObjects(ctx, h.bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, obj.Err)
		}
		key := obj.Key
		if h.prefix != "" {
			key = strings.TrimPrefix(key, h.prefix+"/")
		}
		paths = append(paths, key)
	}
	sort.Strings(paths)
	return paths, nil
}

func (h *ObjectStoreHandler) Exists(ctx context.Context, p string) (bool, error) {
	_, err := h.client.StatObject(ctx, h.bucket, h.key(p), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return true, nil
}

func (h *ObjectStoreHandler) Delete(ctx context.Context, p string) error {
	if err := h.client.RemoveObject(ctx, h.bucket, h.key(p), minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	return nil
}

func (h *ObjectStoreHandler) URI(p string) string {
	return fmt.Sprintf("s3://%s/%s", h.bucket, h.key(p))
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

var _ Handler = (*ObjectStoreHandler)(nil)
