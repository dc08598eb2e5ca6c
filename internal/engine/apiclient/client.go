// Package apiclient is the authenticated HTTP transport used by the chat
// engine. The endpoint family is selected by the conversation kind.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"tutor-chat/internal/models"
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// StatusOf extracts the HTTP status carried by err.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// MessageOf returns the server-provided message of err, or err's text.
func MessageOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

// IsUnauthorized reports an expired or rejected session.
func IsUnauthorized(err error) bool {
	status, ok := StatusOf(err)
	return ok && status == http.StatusUnauthorized
}

// IsGone reports a conversation that is inaccessible or deleted.
func IsGone(err error) bool {
	status, ok := StatusOf(err)
	return ok && (status == http.StatusForbidden || status == http.StatusNotFound)
}

// IsTransient reports server-side or network failures worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if status, ok := StatusOf(err); ok {
		return status >= http.StatusInternalServerError
	}
	return true
}

// Attachment is the binary part of a VOICE, IMAGE or FILE send.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// SendRequest is a composed message ready for the wire.
type SendRequest struct {
	Type       models.MessageType
	Content    string
	ReceiverID int
	Attachment *Attachment
}

// Client talks to the chat API with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New constructs a Client.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GroupMessages fetches the full message list of a group.
func (c *Client) GroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "/messages"), "/groups/:id/messages", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// PinnedMessages fetches the pinned messages of a group.
func (c *Client) PinnedMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, groupPath(groupID, "/pinned-messages"), "/groups/:id/pinned-messages", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// TutorMessages fetches the raw message list of a tutor chat.
func (c *Client) TutorMessages(ctx context.Context, chatID int) ([]models.TutorMessage, error) {
	var resp struct {
		Messages []models.TutorMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, tutorPath(chatID, "/messages"), "/tutor-chats/:id/messages", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ListGroups returns the caller's groups.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var resp struct {
		Groups []models.Group `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, "/groups", "/groups", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

// ListTutorChats returns the caller's tutor chats.
func (c *Client) ListTutorChats(ctx context.Context) ([]models.TutorChat, error) {
	var resp struct {
		Chats []models.TutorChat `json:"chats"`
	}
	if err := c.do(ctx, http.MethodGet, "/tutor-chats", "/tutor-chats", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// CreateMessage posts a message. TEXT goes out as JSON, everything else as
// multipart. The request body is rebuilt from req on every call.
func (c *Client) CreateMessage(ctx context.Context, conv models.Conversation, req SendRequest) (models.Message, error) {
	path, route := messagesPath(conv)
	body, contentType, err := encodeSend(req)
	if err != nil {
		return models.Message{}, err
	}

	if conv.IsGroup() {
		var msg models.Message
		if err := c.do(ctx, http.MethodPost, path, route, body, contentType, &msg); err != nil {
			return models.Message{}, err
		}
		return msg, nil
	}

	var raw models.TutorMessage
	if err := c.do(ctx, http.MethodPost, path, route, body, contentType, &raw); err != nil {
		return models.Message{}, err
	}
	return raw.ToMessage(), nil
}

// UpdateMessage edits the content of a group message.
func (c *Client) UpdateMessage(ctx context.Context, groupID, messageID int, content string) (models.Message, error) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err = c.do(ctx, http.MethodPut, groupPath(groupID, "/messages/"+strconv.Itoa(messageID)), "/groups/:id/messages/:mid", payload, "application/json", &msg)
	return msg, err
}

// DeleteMessage removes a group message.
func (c *Client) DeleteMessage(ctx context.Context, groupID, messageID int) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "/messages/"+strconv.Itoa(messageID)), "/groups/:id/messages/:mid", nil, "", nil)
}

// ToggleReaction adds or removes the caller's emoji on a group message.
func (c *Client) ToggleReaction(ctx context.Context, groupID, messageID int, emoji string) (models.ToggleResult, error) {
	payload, err := json.Marshal(map[string]string{"emoji": emoji})
	if err != nil {
		return models.ToggleResult{}, err
	}
	var res models.ToggleResult
	err = c.do(ctx, http.MethodPost, groupPath(groupID, "/messages/"+strconv.Itoa(messageID)+"/reactions"), "/groups/:id/messages/:mid/reactions", payload, "application/json", &res)
	return res, err
}

// Pin marks a group message as pinned.
func (c *Client) Pin(ctx context.Context, groupID, messageID int) error {
	return c.do(ctx, http.MethodPost, groupPath(groupID, "/messages/"+strconv.Itoa(messageID)+"/pin"), "/groups/:id/messages/:mid/pin", nil, "", nil)
}

// Unpin clears the pin of a group message.
func (c *Client) Unpin(ctx context.Context, groupID, messageID int) error {
	return c.do(ctx, http.MethodDelete, groupPath(groupID, "/messages/"+strconv.Itoa(messageID)+"/pin"), "/groups/:id/messages/:mid/pin", nil, "", nil)
}

func (c *Client) do(ctx context.Context, method, path, route string, body []byte, contentType string, out any) error {
	ctx, span := otel.Tracer("tutor-chat/apiclient").Start(ctx, method+" "+route)
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		observeRequest(method, route, "network_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "network error")
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	observeRequest(method, route, strconv.Itoa(resp.StatusCode))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		span.SetStatus(codes.Error, serr.Error())
		return serr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Printf("apiclient: decode failed route=%s err=%v", route, err)
		return fmt.Errorf("decode %s: %w", route, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func encodeSend(req SendRequest) ([]byte, string, error) {
	if req.Attachment == nil {
		payload := map[string]any{
			"content": req.Content,
			"type":    req.Type,
		}
		if req.ReceiverID != 0 {
			payload["receiver_id"] = req.ReceiverID
		}
		body, err := json.Marshal(payload)
		return body, "application/json", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"content": req.Content,
		"type":    string(req.Type),
	}
	if req.ReceiverID != 0 {
		fields["receiver_id"] = strconv.Itoa(req.ReceiverID)
	}
	for _, key := range []string{"content", "type", "receiver_id"} {
		val, ok := fields[key]
		if !ok {
			continue
		}
		if err := w.WriteField(key, val); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Attachment.Name))
	mimeType := req.Attachment.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Attachment.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func groupPath(id int, suffix string) string {
	return "/groups/" + strconv.Itoa(id) + suffix
}

func tutorPath(id int, suffix string) string {
	return "/tutor-chats/" + strconv.Itoa(id) + suffix
}

func messagesPath(conv models.Conversation) (string, string) {
	if conv.IsGroup() {
		return groupPath(conv.ID, "/messages"), "/groups/:id/messages"
	}
	return tutorPath(conv.ID, "/messages"), "/tutor-chats/:id/messages"
}
