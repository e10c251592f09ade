package config

const (
	// MaxQueryLength is the maximum length of a chat query in characters.
	MaxQueryLength = 16000

	// MaxAttachments is the maximum number of files sent with one query.
	MaxAttachments = 10

	// MaxInlineAttachmentSize caps base64 attachment data (bytes of encoded text).
	// Larger files should be uploaded and referenced by URL.
	MaxInlineAttachmentSize = 8 << 20

	// MaxEventSize is the largest single SSE line the client accepts.
	// Tool outputs (scraped pages) can be large, so this is generous.
	MaxEventSize = 8 << 20

	// MaxErrorBodySize limits how much of a failed response body is read.
	MaxErrorBodySize = 64 << 10
)
