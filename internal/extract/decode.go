package extract

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// DecodeError is a body part whose data is not valid base64url.
type DecodeError struct {
	MessageID string
	MimeType  string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s body of message %s: %v", e.MimeType, e.MessageID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeBase64URL decodes Gmail body data as UTF-8 text. Padding is optional;
// invalid UTF-8 sequences become U+FFFD.
func DecodeBase64URL(data string) (string, error) {
	if rem := len(data) % 4; rem != 0 {
		data += strings.Repeat("=", 4-rem)
	}

	// strings.Reader → charTranslator → base64.Decoder
	decoder := base64.NewDecoder(base64.StdEncoding, &charTranslator{r: strings.NewReader(data)})
	decoded, err := io.ReadAll(decoder)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(decoded), "�"), nil
}

// charTranslator translates base64url to standard base64 on-the-fly
type charTranslator struct {
	r io.Reader
}

func (c *charTranslator) Read(p []byte) (n int, err error) {
	n, err = c.r.Read(p)
	// Translate characters in-place: - to +, _ to /
	for i := 0; i < n; i++ {
		switch p[i] {
		case '-':
			p[i] = '+'
		case '_':
			p[i] = '/'
		}
	}
	return n, err
}
