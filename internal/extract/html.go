package extract

import (
	md "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

// HTMLConverter turns base64url text/html bodies into Markdown text.
type HTMLConverter struct {
	conv *md.Converter
}

func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{
		conv: md.NewConverter(
			md.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(
					commonmark.WithStrongDelimiter("**"),
					commonmark.WithEmDelimiter("_"),
				),
			),
			md.WithEscapeMode(md.EscapeModeDisabled),
		),
	}
}

// Convert decodes data and converts the HTML to Markdown.
func (h *HTMLConverter) Convert(data string) (string, error) {
	html, err := DecodeBase64URL(data)
	if err != nil {
		return "", err
	}
	return h.conv.ConvertString(html)
}
