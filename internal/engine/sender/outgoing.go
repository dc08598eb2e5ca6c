package sender

import (
	"fmt"
	"strings"
	"time"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/models"
)

// Outgoing is a composed message waiting to be sent. It is one of Text,
// Voice, Image or File.
type Outgoing interface {
	Type() models.MessageType
	request() (apiclient.SendRequest, error)
	size() int64
}

// Text is a plain text message.
type Text struct {
	Content string
}

// Voice is a finished recording.
type Voice struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Image is a picture upload. Caption falls back to the file name.
type Image struct {
	File    apiclient.Attachment
	Caption string
}

// File is a generic document upload. Caption falls back to the file name.
type File struct {
	File    apiclient.Attachment
	Caption string
}

func (Text) Type() models.MessageType  { return models.MessageText }
func (Voice) Type() models.MessageType { return models.MessageVoice }
func (Image) Type() models.MessageType { return models.MessageImage }
func (File) Type() models.MessageType  { return models.MessageFile }

func (t Text) size() int64  { return 0 }
func (v Voice) size() int64 { return int64(len(v.Data)) }
func (i Image) size() int64 { return int64(len(i.File.Data)) }
func (f File) size() int64  { return int64(len(f.File.Data)) }

func (t Text) request() (apiclient.SendRequest, error) {
	content := strings.TrimSpace(t.Content)
	if content == "" {
		return apiclient.SendRequest{}, ErrEmptyMessage
	}
	return apiclient.SendRequest{Type: models.MessageText, Content: content}, nil
}

func (v Voice) request() (apiclient.SendRequest, error) {
	if len(v.Data) == 0 {
		return apiclient.SendRequest{}, ErrEmptyMessage
	}
	mimeType := v.MIME
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return apiclient.SendRequest{
		Type:    models.MessageVoice,
		Content: VoiceContent(v.Duration),
		Attachment: &apiclient.Attachment{
			Name: "voice" + extensionFor(mimeType),
			MIME: mimeType,
			Data: v.Data,
		},
	}, nil
}

func (i Image) request() (apiclient.SendRequest, error) {
	return attachmentRequest(models.MessageImage, i.File, i.Caption)
}

func (f File) request() (apiclient.SendRequest, error) {
	return attachmentRequest(models.MessageFile, f.File, f.Caption)
}

func attachmentRequest(typ models.MessageType, file apiclient.Attachment, caption string) (apiclient.SendRequest, error) {
	if len(file.Data) == 0 {
		return apiclient.SendRequest{}, ErrEmptyMessage
	}
	if file.Name == "" {
		file.Name = strings.ToLower(string(typ))
	}
	content := strings.TrimSpace(caption)
	if content == "" {
		content = file.Name
	}
	return apiclient.SendRequest{Type: typ, Content: content, Attachment: &file}, nil
}

// VoiceContent is the textual content stored alongside a voice message.
func VoiceContent(d time.Duration) string {
	return fmt.Sprintf("Voice message (%ds)", int(d/time.Second))
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch base {
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".webm"
	}
}
