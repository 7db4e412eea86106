// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/mediaseal/mediaseal-backend/internal/config"
)

// StorageService persists original and rendered media bytes. Backed by S3
// when credentials are configured, by the local filesystem otherwise.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
	localDir string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	svc := &StorageService{
		config:   cfg,
		localDir: cfg.Storage.LocalDir,
	}

	if cfg.AWS.AccessKeyID == "" {
		// Local filesystem storage for development
		if err := os.MkdirAll(svc.localDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create local storage dir: %w", err)
		}
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// ObjectKey builds a unique storage key for one stored variant of an asset.
func (s *StorageService) ObjectKey(assetID uuid.UUID, variant string) string {
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("media/%s_%s/%s.bin", timestamp, assetID.String()[:8], variant)
}

// Put stores the bytes under key and returns the storage reference.
func (s *StorageService) Put(key string, data []byte, contentType string) (string, error) {
	if s.s3Client == nil {
		return s.putLocal(key, data)
	}

	_, err := s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

// Fetch retrieves previously stored bytes by reference. Satisfies the
// worker's object source.
func (s *StorageService) Fetch(ref string) ([]byte, error) {
	if s.s3Client == nil {
		return s.fetchLocal(ref)
	}

	out, err := s.s3Client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return data, nil
}

func (s *StorageService) Delete(ref string) error {
	if s.s3Client == nil {
		return os.Remove(s.localPath(ref))
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

func (s *StorageService) localPath(key string) string {
	return filepath.Join(s.localDir, strings.ReplaceAll(key, "/", "_"))
}

func (s *StorageService) putLocal(key string, data []byte) (string, error) {
	path := s.localPath(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write local object: %w", err)
	}
	return key, nil
}

func (s *StorageService) fetchLocal(ref string) ([]byte, error) {
	data, err := os.ReadFile(s.localPath(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to read local object: %w", err)
	}
	return data, nil
}
