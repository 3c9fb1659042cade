package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/neuroscan/neuroscan-api/internal/config"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
	"github.com/neuroscan/neuroscan-api/pkg/logger"
)

// Uploader persists binary assets and returns their public URLs.
type Uploader interface {
	UploadScan(ctx context.Context, data []byte, filename string) (string, error)
	UploadReport(ctx context.Context, data []byte, filename string) (string, error)
}

// AssetStore uploads to a Cloudinary-compatible unsigned upload endpoint.
type AssetStore struct {
	cfg    config.StorageConfig
	client *http.Client
	logger *logger.Logger
}

func NewAssetStore(cfg config.StorageConfig, logger *logger.Logger) *AssetStore {
	return &AssetStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.TimeoutSeconds},
		logger: logger,
	}
}

func (s *AssetStore) UploadScan(ctx context.Context, data []byte, filename string) (string, error) {
	return s.upload(ctx, data, filename, s.cfg.ScanFolder)
}

func (s *AssetStore) UploadReport(ctx context.Context, data []byte, filename string) (string, error) {
	return s.upload(ctx, data, filename, s.cfg.ReportFolder)
}

func (s *AssetStore) upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}
	if err := writer.WriteField("upload_preset", s.cfg.UploadPreset); err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}
	if err := writer.WriteField("folder", folder); err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}
	if err := writer.Close(); err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UploadURL, body)
	if err != nil {
		return "", apperrors.Storage("failed to build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.Storage("asset store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error(nil, "Asset store returned non-OK status",
			"status", resp.StatusCode,
			"body", string(respBody))
		return "", apperrors.Storage(
			fmt.Sprintf("asset store returned status %d", resp.StatusCode), nil)
	}

	var result struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperrors.Storage("failed to decode asset store response", err)
	}

	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	if result.URL != "" {
		return result.URL, nil
	}
	return "", apperrors.Storage("asset store response contained no URL", nil)
}
