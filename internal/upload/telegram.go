package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramUploader sends demos as documents to a Telegram chat via the Bot
// API. The multipart body is produced through a pipe, so the file is
// streamed to the wire without being held in memory.
type TelegramUploader struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
}

type TelegramOption func(*TelegramUploader)

func WithTelegramBaseURL(url string) TelegramOption {
	return func(t *TelegramUploader) {
		t.baseURL = url
	}
}

func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(t *TelegramUploader) {
		t.httpClient = c
	}
}

func NewTelegramUploader(token, chatID string, opts ...TelegramOption) *TelegramUploader {
	t := &TelegramUploader{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    defaultTelegramBaseURL,
		token:      token,
		chatID:     chatID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Upload posts the file to sendDocument and returns the resulting message id.
func (t *TelegramUploader) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := t.writeForm(mw, name, body)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	url := fmt.Sprintf("%s/bot%s/sendDocument", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return "", fmt.Errorf("telegram request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("telegram response: %w", err)
	}
	if !tr.OK {
		return "", fmt.Errorf("telegram send failed: %s", tr.Description)
	}

	return strconv.FormatInt(tr.Result.MessageID, 10), nil
}

func (t *TelegramUploader) writeForm(mw *multipart.Writer, name string, body io.Reader) error {
	if err := mw.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("document", name)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, body)
	return err
}
