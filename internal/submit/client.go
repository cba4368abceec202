// Package submit предоставляет клиент для отправки заказа на сервер предзаказа.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Item описывает одну позицию заказа в передаваемой форме.
type Item struct {
	Design   string `json:"design"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// Payload описывает данные заказа, упаковываемые в multipart-форму.
// Подразумевается, что вызывающая сторона уже выполнила валидацию черновика:
// клиент проверяет только корректность самой передачи.
type Payload struct {
	Name         string
	Address      string
	IsPickup     bool
	Items        []Item
	TotalPrice   int64
	SlipFilename string
	SlipImage    []byte
}

// Confirmation содержит идентификатор заказа, назначенный сервером.
type Confirmation struct {
	OrderID int64
}

// NetworkError означает сбой на транспортном уровне (включая таймаут).
// Повторная отправка безопасна, но выполняется только по действию пользователя.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerRejectedError означает, что сервер отклонил заказ.
// Message показывается пользователю дословно.
type ServerRejectedError struct {
	Status  int
	Message string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected submission (status %d): %s", e.Status, e.Message)
}

// MalformedResponseError означает, что тело ответа не удалось разобрать
// в ожидаемом формате. Это дефект, а не ошибка пользователя.
type MalformedResponseError struct {
	Status int
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (status %d): %v", e.Status, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Client инкапсулирует HTTP-взаимодействие с эндпоинтом приёма заказов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для отправки заказов по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ответ сервера: либо id заказа, либо сообщение об ошибке
type responseEnvelope struct {
	ID    *int64 `json:"id"`
	Error string `json:"error"`
}

// Submit отправляет заказ одной multipart-формой и разбирает ответ сервера.
func (c *Client) Submit(ctx context.Context, p Payload) (*Confirmation, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("submit client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, contentType, err := encodeForm(p)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/order", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &MalformedResponseError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Error != "" {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ServerRejectedError{Status: resp.StatusCode, Message: msg}
	}

	if envelope.ID == nil {
		return nil, &MalformedResponseError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("response has no order id"),
		}
	}

	return &Confirmation{OrderID: *envelope.ID}, nil
}

func encodeForm(p Payload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := map[string]string{
		"name":       p.Name,
		"address":    p.Address,
		"isPickup":   strconv.FormatBool(p.IsPickup),
		"totalPrice": strconv.FormatInt(p.TotalPrice, 10),
	}

	items, err := json.Marshal(p.Items)
	if err != nil {
		return nil, "", fmt.Errorf("marshal items: %w", err)
	}
	fields["items"] = string(items)

	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	filename := p.SlipFilename
	if filename == "" {
		filename = "slip"
	}
	fw, err := mw.CreateFormFile("slipImage", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(p.SlipImage); err != nil {
		return nil, "", fmt.Errorf("write slip image: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return buf, mw.FormDataContentType(), nil
}
