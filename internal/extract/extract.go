package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.withmatt.com/mailcode/internal/gmail"
	"go.withmatt.com/mailcode/internal/log"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// Source says where a result's text came from.
type Source string

const (
	SourcePlain   Source = "text/plain"
	SourceHTML    Source = "text/html"
	SourceSnippet Source = "snippet"
)

// MessageSource is the Gmail surface the extractor needs.
type MessageSource interface {
	ListMessages(ctx context.Context, q gmail.MessageQuery) ([]gmail.MessageSummary, error)
	GetMessage(ctx context.Context, id string) (*gmail.MessageDetail, error)
}

// Result is what was extracted from one message.
type Result struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	To      string `json:"to"`
	Date    string `json:"date"`
	// Snippet is Gmail's own preview of the message.
	Snippet string `json:"snippet"`
	// Text is what the pattern ran against: the decoded body, or the snippet.
	Text   string  `json:"text"`
	Source Source  `json:"source"`
	Code   *string `json:"code"`
}

// Extractor lists messages and pulls a code out of each one, in listing order.
type Extractor struct {
	Client MessageSource
	// HTML converts text/html bodies when a message has no usable text/plain
	// part. Nil disables the fallback.
	HTML *HTMLConverter
}

func New(client MessageSource) *Extractor {
	return &Extractor{Client: client}
}

// CompilePattern compiles a code pattern for case-insensitive matching.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid code pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Run lists messages matching q and extracts one Result per message. Any
// Gmail error aborts the run and no results are returned.
func (e *Extractor) Run(ctx context.Context, q gmail.MessageQuery, pattern *regexp.Regexp) ([]Result, error) {
	summaries, err := e.Client.ListMessages(ctx, q)
	if err != nil {
		return nil, err
	}
	log.Printf("listed %d messages query=%q max=%d", len(summaries), q.Search, q.MaxResults)

	results := make([]Result, 0, len(summaries))
	for _, summary := range summaries {
		if summary.ID == "" {
			log.Printf("skipping listing entry without id")
			continue
		}
		detail, err := e.Client.GetMessage(ctx, summary.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, e.Extract(detail, pattern))
	}
	return results, nil
}

// Extract builds the Result for a fetched message.
func (e *Extractor) Extract(detail *gmail.MessageDetail, pattern *regexp.Regexp) Result {
	res := Result{
		ID:      detail.ID,
		Subject: HeaderValue(detail.Headers, "Subject"),
		From:    HeaderValue(detail.Headers, "From"),
		To:      HeaderValue(detail.Headers, "To"),
		Date:    HeaderValue(detail.Headers, "Date"),
		Snippet: detail.Snippet,
	}

	res.Text, res.Source = e.bodyText(detail)
	if code, ok := MatchCode(pattern, res.Text); ok {
		res.Code = &code
	}
	return res
}

func (e *Extractor) bodyText(detail *gmail.MessageDetail) (string, Source) {
	if part, ok := SelectBody(detail.Parts, mimeTextPlain); ok {
		text, err := DecodeBase64URL(part.Data)
		if err == nil {
			return text, SourcePlain
		}
		log.Printf("%v", &DecodeError{MessageID: detail.ID, MimeType: part.MimeType, Err: err})
	}

	if e.HTML != nil {
		if part, ok := SelectBody(detail.Parts, mimeTextHTML); ok {
			text, err := e.HTML.Convert(part.Data)
			if err == nil {
				return text, SourceHTML
			}
			log.Printf("html fallback for message %s: %v", detail.ID, err)
		}
	}

	return detail.Snippet, SourceSnippet
}

// HeaderValue returns the value of the first header whose name matches,
// ignoring case, or "" when there is none.
func HeaderValue(headers []gmail.Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SelectBody returns the first inline part of exactly mimeType that carries
// data. Parts with a filename are attachments and never selected.
func SelectBody(parts []gmail.Part, mimeType string) (gmail.Part, bool) {
	for _, part := range parts {
		if part.MimeType == mimeType && part.Data != "" && part.Filename == "" {
			return part, true
		}
	}
	return gmail.Part{}, false
}

// MatchCode returns the first capturing group of the first match of pattern
// in text, or the whole match when the pattern has no groups.
func MatchCode(pattern *regexp.Regexp, text string) (string, bool) {
	if pattern == nil {
		return "", false
	}
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	code := m[0]
	if len(m) > 1 {
		code = m[1]
	}
	if code == "" {
		return "", false
	}
	return code, true
}
