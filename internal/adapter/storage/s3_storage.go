package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
)

// Расширения экспортируемых объектов
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// urlExpiry срок действия presigned URL
const urlExpiry = time.Hour

// S3Storage экспорт результатов идентификации в S3/MinIO
type S3Storage struct {
	client *minio.Client
	bucket string
}

// NewS3Storage создаёт новый экземпляр S3Storage
func NewS3Storage(ctx context.Context, cfg config.S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// Проверяем/создаём bucket
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// exportDocument содержимое JSON объекта
type exportDocument struct {
	Task   domain.TaskSnapshot `json:"task"`
	Result *domain.Result      `json:"result"`
	Ranked []domain.NodeScore  `json:"ranked"`
}

// Export выгружает результат в JSON и CSV и возвращает общий префикс ключей
func (s *S3Storage) Export(ctx context.Context, task domain.TaskSnapshot, result *domain.Result) (string, error) {
	key := resultKey(time.Now(), task.ID)

	// Результат хранится отдельно, в снимке не дублируем
	task.Result = nil
	doc, err := json.Marshal(exportDocument{Task: task, Result: result, Ranked: result.Scores()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	table, err := buildCSV(result)
	if err != nil {
		return "", err
	}

	if err := s.put(ctx, objectKey(key, FormatJSON), "application/json", doc); err != nil {
		return "", err
	}
	if err := s.put(ctx, objectKey(key, FormatCSV), "text/csv", table); err != nil {
		return "", err
	}

	return key, nil
}

// URLs возвращает presigned URL для каждого формата
func (s *S3Storage) URLs(ctx context.Context, key string) (map[string]string, error) {
	urls := make(map[string]string, 2)
	for _, format := range []string{FormatJSON, FormatCSV} {
		u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey(key, format), urlExpiry, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
		}
		urls[format] = u.String()
	}
	return urls, nil
}

// Delete удаляет экспортированные объекты
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	for _, format := range []string{FormatJSON, FormatCSV} {
		err := s.client.RemoveObject(ctx, s.bucket, objectKey(key, format), minio.RemoveObjectOptions{})
		if err != nil {
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}
	return nil
}

func (s *S3Storage) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// resultKey уникальный префикс: year/month/day/uuid/taskID
func resultKey(now time.Time, taskID string) string {
	return path.Join(
		now.Format("2006"),
		now.Format("01"),
		now.Format("02"),
		uuid.New().String(),
		taskID,
	)
}

func objectKey(key, format string) string {
	return key + "." + format
}

// buildCSV строит таблицу node_id,score по убыванию оценки
func buildCSV(result *domain.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"node_id", "score"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range result.Scores() {
		if err := w.Write([]string{s.NodeID, strconv.FormatFloat(s.Score, 'g', -1, 64)}); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
