package gmail

// UserID is the Gmail alias for the authorized account.
const UserID = "me"

// MessageQuery selects messages to list.
type MessageQuery struct {
	Search     string `json:"search"`
	MaxResults int64  `json:"max_results"`
}

// MessageSummary is a listing entry; only the ID is populated by Gmail.
type MessageSummary struct {
	ID string `json:"id"`
}

// Header is a single message header, in the order Gmail returned it.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Part is a MIME part with its still-encoded body data.
type Part struct {
	MimeType string `json:"mime_type"`
	// Data is base64url-encoded, as delivered by Gmail. Empty when the part
	// carries no inline body.
	Data     string `json:"data,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// MessageDetail is a message fetched with format=full.
type MessageDetail struct {
	ID      string   `json:"id"`
	Headers []Header `json:"headers"`
	Snippet string   `json:"snippet"`
	Parts   []Part   `json:"parts"`
}
