package telegram

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const downloadTimeout = 60 * time.Second

// fileLoader скачивает файлы из Telegram.
type fileLoader struct {
	api  *tgbotapi.BotAPI
	http *http.Client
}

func newFileLoader(api *tgbotapi.BotAPI) *fileLoader {
	return &fileLoader{api: api, http: &http.Client{Timeout: downloadTimeout}}
}

func (l *fileLoader) open(fileID string) (io.ReadCloser, error) {
	url, err := l.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	resp, err := l.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// telegramFile фото или документ из сообщения, скачивается при открытии.
type telegramFile struct {
	name        string
	contentType string
	fileID      string
	open        func(fileID string) (io.ReadCloser, error)
}

func (f *telegramFile) Name() string        { return f.name }
func (f *telegramFile) ContentType() string { return f.contentType }

func (f *telegramFile) Open() (io.ReadCloser, error) {
	return f.open(f.fileID)
}

// imageFromMessage достаёт из сообщения фото (в максимальном размере) или документ.
func imageFromMessage(msg *tgbotapi.Message, loader *fileLoader) (*telegramFile, bool) {
	var open func(string) (io.ReadCloser, error)
	if loader != nil {
		open = loader.open
	}

	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return &telegramFile{
			name:        "photo_" + photo.FileUniqueID + ".jpg",
			contentType: "image/jpeg",
			fileID:      photo.FileID,
			open:        open,
		}, true
	}

	if doc := msg.Document; doc != nil {
		contentType := doc.MimeType
		if contentType == "" {
			contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(doc.FileName)))
		}
		return &telegramFile{
			name:        doc.FileName,
			contentType: contentType,
			fileID:      doc.FileID,
			open:        open,
		}, true
	}

	return nil, false
}

// decodeDataURI достаёт байты из data URI; строка без префикса считается чистым base64.
func decodeDataURI(uri string) ([]byte, error) {
	if uri == "" {
		return nil, nil
	}

	payload := uri
	if strings.HasPrefix(uri, "data:") {
		meta, data, ok := strings.Cut(uri, ",")
		if !ok {
			return nil, errors.New("data uri without payload")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("unsupported data uri encoding %q", meta)
		}
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return data, nil
}
