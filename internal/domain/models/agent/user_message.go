package agent

// Attachment type constants
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// Transfer method constants
const (
	TransferInline = "inline" // Data carries base64 content
	TransferURL    = "url"    // URL points at the content
)

// Attachment describes a file or image sent along with a user turn
type Attachment struct {
	Type           string `json:"type" yaml:"type"`
	MediaType      string `json:"media_type" yaml:"media_type"`
	TransferMethod string `json:"transfer_method" yaml:"transfer_method"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Data           string `json:"data,omitempty" yaml:"data,omitempty"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
}

// UserMessageBlock is the user's outgoing turn. It is built synchronously at
// submit time and never derived from the stream.
type UserMessageBlock struct {
	ID          string
	Text        string
	Attachments []Attachment
}

// ToMessageBlock converts the user turn into a renderable block
func (u *UserMessageBlock) ToMessageBlock(conversationID string) MessageBlock {
	return MessageBlock{
		ID:             u.ID,
		Role:           RoleUser,
		ConversationID: conversationID,
		Entries: []Entry{{
			ID:      u.ID,
			Role:    RoleUser,
			Content: u.Text,
		}},
		Attachments: append([]Attachment(nil), u.Attachments...),
	}
}
