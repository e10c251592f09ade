// Package agent holds request handling shared by the chat session and the
// mock backend.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/tidwall/gjson"

	"github.com/watercrawl/WaterCrawl-sub003/internal/config"
	"github.com/watercrawl/WaterCrawl-sub003/internal/domain"
	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

// ValidateChatRequest checks a chat request before it is sent or served.
// Returns a *domain.ValidationError (matching domain.ErrValidation).
func ValidateChatRequest(req *agentModels.ChatRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Query,
			validation.Required,
			validation.Length(1, config.MaxQueryLength),
		),
		validation.Field(&req.User, validation.Required),
		validation.Field(&req.ResponseMode,
			validation.Required,
			validation.In(agentModels.ModeStreaming, agentModels.ModeBlocking),
		),
		validation.Field(&req.JSONSchema, validation.By(validateJSONSchema)),
		validation.Field(&req.Files,
			validation.Length(0, config.MaxAttachments),
			validation.Each(validation.By(validateAttachment)),
		),
	)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

func validateJSONSchema(value interface{}) error {
	schema, _ := value.(json.RawMessage)
	if len(schema) == 0 {
		return nil
	}
	if !gjson.ValidBytes(schema) || !gjson.ParseBytes(schema).IsObject() {
		return errors.New("must be a JSON object")
	}
	return nil
}

func validateAttachment(value interface{}) error {
	a, ok := value.(agentModels.Attachment)
	if !ok {
		return fmt.Errorf("invalid attachment type %T", value)
	}

	return validation.ValidateStruct(&a,
		validation.Field(&a.Type,
			validation.Required,
			validation.In(agentModels.AttachmentImage, agentModels.AttachmentFile),
		),
		validation.Field(&a.MediaType, validation.Required),
		validation.Field(&a.TransferMethod,
			validation.Required,
			validation.In(agentModels.TransferInline, agentModels.TransferURL),
		),
		validation.Field(&a.URL,
			validation.When(a.TransferMethod == agentModels.TransferURL, validation.Required, is.URL),
		),
		validation.Field(&a.Data,
			validation.When(a.TransferMethod == agentModels.TransferInline,
				validation.Required,
				is.Base64,
				validation.Length(1, config.MaxInlineAttachmentSize),
			),
		),
	)
}
