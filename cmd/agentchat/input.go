package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// loadAttachments turns --file values into attachments.
// http(s) URLs are sent by reference; anything else is read and inlined.
func loadAttachments(refs []string) ([]agentModels.Attachment, error) {
	attachments := make([]agentModels.Attachment, 0, len(refs))
	for _, ref := range refs {
		a, err := loadAttachment(ref)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}

func loadAttachment(ref string) (agentModels.Attachment, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		mediaType, _, _ := strings.Cut(mime.TypeByExtension(path.Ext(u.Path)), ";")
		if mediaType == "" {
			mediaType = "application/octet-stream"
		}
		return agentModels.Attachment{
			Type:           attachmentType(mediaType),
			MediaType:      mediaType,
			TransferMethod: agentModels.TransferURL,
			Name:           path.Base(u.Path),
			URL:            ref,
		}, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return agentModels.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	if base64.StdEncoding.EncodedLen(len(data)) > config.MaxInlineAttachmentSize {
		return agentModels.Attachment{}, fmt.Errorf("attachment %s is too large to send inline; pass a URL instead", ref)
	}

	mediaType := mime.TypeByExtension(filepath.Ext(ref))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	mediaType, _, _ = strings.Cut(mediaType, ";")

	return agentModels.Attachment{
		Type:           attachmentType(mediaType),
		MediaType:      mediaType,
		TransferMethod: agentModels.TransferInline,
		Name:           filepath.Base(ref),
		Data:           base64.StdEncoding.EncodeToString(data),
	}, nil
}

func attachmentType(mediaType string) string {
	if strings.HasPrefix(mediaType, "image/") {
		return agentModels.AttachmentImage
	}
	return agentModels.AttachmentFile
}

// loadSchema reads a JSON schema file. An empty path means no schema.
func loadSchema(p string) (json.RawMessage, error) {
	if p == "" {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("schema %s is not a JSON object", p)
	}
	return json.RawMessage(data), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
