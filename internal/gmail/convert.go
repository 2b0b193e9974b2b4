package gmail

import (
	"google.golang.org/api/gmail/v1"
)

// GmailToDetail converts a Gmail API message to our MessageDetail type
func GmailToDetail(msg *gmail.Message) *MessageDetail {
	detail := &MessageDetail{
		ID:      msg.Id,
		Snippet: msg.Snippet,
	}

	if msg.Payload != nil {
		detail.Headers = make([]Header, 0, len(msg.Payload.Headers))
		for _, header := range msg.Payload.Headers {
			if header == nil {
				continue
			}
			detail.Headers = append(detail.Headers, Header{Name: header.Name, Value: header.Value})
		}
		detail.Parts = flattenParts(msg.Payload, nil)
	}

	return detail
}

// flattenParts walks the MIME tree in pre-order. Multipart containers are
// skipped; a single-part payload contributes itself.
func flattenParts(payload *gmail.MessagePart, out []Part) []Part {
	if payload == nil {
		return out
	}
	if len(payload.Parts) == 0 {
		part := Part{MimeType: payload.MimeType, Filename: payload.Filename}
		if payload.Body != nil {
			part.Data = payload.Body.Data
		}
		return append(out, part)
	}
	for _, child := range payload.Parts {
		out = flattenParts(child, out)
	}
	return out
}
