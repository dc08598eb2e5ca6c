package handlers

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tutor-chat/internal/models"
	"tutor-chat/internal/repositories"
	"tutor-chat/internal/uploads"
)

var (
	errMissingFile    = errors.New("attachment required for this message type")
	errInvalidType    = errors.New("invalid message type")
	errInvalidReceive = errors.New("invalid receiver id")
)

// messageInput is a message as submitted by a client, either as JSON or as
// a multipart form with a "file" part.
type messageInput struct {
	Content    string
	Type       models.MessageType
	ReceiverID int
	File       *multipart.FileHeader
}

func bindMessageInput(c *gin.Context) (messageInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in := messageInput{
			Content: c.PostForm("content"),
			Type:    models.MessageType(strings.ToUpper(c.PostForm("type"))),
		}
		if raw := c.PostForm("receiver_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return messageInput{}, errInvalidReceive
			}
			in.ReceiverID = id
		}
		fh, err := c.FormFile("file")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			return messageInput{}, err
		}
		in.File = fh
		return in, nil
	}

	var req struct {
		Content    string `json:"content"`
		Type       string `json:"type"`
		ReceiverID int    `json:"receiver_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return messageInput{}, err
	}
	return messageInput{
		Content:    req.Content,
		Type:       models.MessageType(strings.ToUpper(req.Type)),
		ReceiverID: req.ReceiverID,
	}, nil
}

// inferType picks the message type when the client left it out.
func inferType(in messageInput) models.MessageType {
	if in.Type != "" {
		return in.Type
	}
	if in.File == nil {
		return models.MessageText
	}
	mimeType := in.File.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return models.MessageVoice
	case strings.HasPrefix(mimeType, "image/"):
		return models.MessageImage
	default:
		return models.MessageFile
	}
}

// buildPayload validates the input and stores its attachment.
func buildPayload(store *uploads.Store, in messageInput) (repositories.Payload, error) {
	p := repositories.Payload{
		Content: strings.TrimSpace(in.Content),
		Type:    inferType(in),
	}
	if !p.Type.Valid() {
		return repositories.Payload{}, errInvalidType
	}
	if !p.Type.HasAttachment() {
		if p.Content == "" {
			return repositories.Payload{}, models.ErrMissingContent
		}
		return p, nil
	}
	if in.File == nil {
		return repositories.Payload{}, errMissingFile
	}

	stored, err := store.Save(in.File)
	if err != nil {
		return repositories.Payload{}, err
	}
	if p.Type == models.MessageVoice {
		p.AudioURL = &stored.URL
	} else {
		p.FileURL = &stored.URL
	}
	p.FileName = &stored.Name
	p.FileType = &stored.MIME
	p.FileSize = &stored.Size
	if p.Content == "" {
		p.Content = stored.Name
	}
	return p, nil
}

// discardPayload removes the attachment stored for a message that was never
// created.
func discardPayload(store *uploads.Store, p repositories.Payload) {
	url := p.FileURL
	if url == nil {
		url = p.AudioURL
	}
	if url == nil {
		return
	}
	if err := store.Remove(*url); err != nil {
		log.Printf("uploads: cleanup failed url=%s err=%v", *url, err)
	}
}

// payloadStatus maps buildPayload errors to a response status.
func payloadStatus(err error) int {
	switch {
	case errors.Is(err, uploads.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, uploads.ErrEmpty), errors.Is(err, errMissingFile), errors.Is(err, errInvalidType),
		errors.Is(err, models.ErrMissingContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
