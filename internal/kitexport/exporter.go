// Package kitexport uploads synthesized deployment kits to object
// storage, one object per generated file.
package kitexport

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/trustbuild-labs/trustbuild-go/internal/domain"
	platformstore "github.com/trustbuild-labs/trustbuild-go/internal/platform/objectstore"
)

type Exporter struct {
	client *minio.Client
	bucket string
}

func New(cfg platformstore.Config) (*Exporter, error) {
	client, err := platformstore.NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Exporter{client: client, bucket: cfg.BucketKits}, nil
}

func NewWithClient(client *minio.Client, bucket string) (*Exporter, error) {
	if client == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Exporter{client: client, bucket: bucket}, nil
}

// Export writes every kit file under kits/<pipeline_id>/<category>/<name>
// and returns the object keys written, in kit order.
func (e *Exporter) Export(ctx context.Context, pipelineID string, kit domain.DeploymentKit) ([]string, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("exporter not initialized")
	}
	pipelineID = strings.TrimSpace(pipelineID)
	if pipelineID == "" {
		return nil, fmt.Errorf("pipeline id is required")
	}
	if err := kit.Validate(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(kit.Files))
	for _, file := range kit.Files {
		key := ObjectKey(pipelineID, file)
		body := strings.NewReader(file.Content)
		opts := minio.PutObjectOptions{ContentType: contentType(file.Name)}
		if _, err := e.client.PutObject(ctx, e.bucket, key, body, int64(len(file.Content)), opts); err != nil {
			return keys, fmt.Errorf("put %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func ObjectKey(pipelineID string, file domain.GeneratedFile) string {
	return path.Join("kits", pipelineID, file.Category, file.Name)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "text/plain"
	}
}
