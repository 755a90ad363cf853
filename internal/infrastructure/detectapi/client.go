package detectapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
	"thermal-vision/internal/logger"
)

const (
	// FieldImage имя поля формы с изображением.
	FieldImage = "image"

	maxResponseBytes = 64 << 20 // ответ несёт два изображения в base64
)

// Client ходит в HTTP-сервис детекции.
type Client struct {
	detectURL string
	http      *http.Client
	log       *logger.Logger
}

// HealthStatus ответ GET /health.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelMode   string `json:"model_mode"`
}

// NewClient создаёт клиент. timeout ограничивает ожидание ответа, 0 снимает предел.
func NewClient(detectURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		detectURL: detectURL,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Detect отправляет изображение одним multipart-запросом.
func (c *Client) Detect(ctx context.Context, payload entity.UploadPayload) (*entity.DetectionResult, error) {
	body, contentType, err := encodeMultipart(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.detectURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.Info("detection endpoint answered %d in %v (%d bytes)", resp.StatusCode, time.Since(started), len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if msg := parseFailure(data); msg != "" {
			return nil, &entity.DetectionServiceError{
				Message: msg,
				Cause:   fmt.Errorf("status %d", resp.StatusCode),
			}
		}
		return nil, fmt.Errorf("detection endpoint returned status %d", resp.StatusCode)
	}

	return parseSuccess(data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart кладёт изображение в поле image с типом, определённым по байтам.
func encodeMultipart(payload entity.UploadPayload) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldImage, quoteEscaper.Replace(payload.Filename)))
	header.Set("Content-Type", payload.ContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(payload.Data); err != nil {
		return nil, "", fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// Health проверяет доступность сервиса: /health рядом с адресом детекции.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	healthURL, err := siblingURL(c.detectURL, "health")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service unhealthy: %d", resp.StatusCode)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &status, nil
}

func siblingURL(raw, name string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse detect url: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), name)
	u.RawQuery = ""
	return u.String(), nil
}

// Проверка реализации интерфейса
var _ port.DetectionEndpoint = (*Client)(nil)
