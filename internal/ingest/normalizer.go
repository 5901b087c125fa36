package ingest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	stdmail "net/mail"
	"regexp"
	"strings"
	"time"

	"stagehand/internal/constants"
	"stagehand/internal/mail"
)

// ParseError marks a message that could not be parsed at all. The sync
// service counts these as skips; they never fail a sync pass.
type ParseError struct {
	Folder string
	UID    uint32
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse message %d in %s: %v", e.UID, e.Folder, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalize turns a raw mailbox message into a Message. Pure; the only
// clock access is the received-date fallback.
func Normalize(raw mail.RawMessage) (Message, error) {
	parsed, err := stdmail.ReadMessage(bytes.NewReader(raw.Data))
	if err != nil {
		return Message{}, &ParseError{Folder: raw.Folder, UID: raw.UID, Err: err}
	}

	msg := Message{
		ID:      identity(parsed.Header, raw),
		Subject: decodeHeader(parsed.Header.Get("Subject"), constants.PlaceholderSubject),
		Folder:  raw.Folder,
	}

	from := decodeHeader(parsed.Header.Get("From"), constants.PlaceholderSender)
	msg.Sender = from
	if addr, err := stdmail.ParseAddress(from); err == nil {
		msg.SenderAddress = addr.Address
	}

	if date, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = date.UTC()
	} else {
		msg.ReceivedAt = time.Now().UTC()
	}

	msg.Body = extractBody(parsed)

	return msg, nil
}

func identity(header stdmail.Header, raw mail.RawMessage) string {
	if id := strings.TrimSpace(header.Get("Message-Id")); id != "" {
		return strings.Trim(id, "<>")
	}
	// Composite fallback: unique per folder, not stable across folder moves.
	return fmt.Sprintf("%s-%d", raw.Folder, raw.UID)
}

func decodeHeader(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	decoder := &mime.WordDecoder{}
	if decoded, err := decoder.DecodeHeader(value); err == nil {
		return decoded
	}
	return value
}

// extractBody prefers a plain-text part, then tag-stripped HTML, then empty.
func extractBody(parsed *stdmail.Message) string {
	contentType := parsed.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipartBody(parsed.Body, params["boundary"])
	}

	body := decodeTransferEncoding(parsed.Body, parsed.Header.Get("Content-Transfer-Encoding"))
	if mediaType == "text/html" {
		return stripHTML(body)
	}
	return body
}

func extractMultipartBody(body io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}

	var htmlFallback string
	reader := multipart.NewReader(body, boundary)
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}

		partType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}

		// Mail with attachments nests multipart/alternative inside
		// multipart/mixed; descend into inner containers.
		if strings.HasPrefix(partType, "multipart/") {
			if nested := extractMultipartBody(part, partParams["boundary"]); nested != "" {
				return nested
			}
			continue
		}

		content := decodeTransferEncoding(part, part.Header.Get("Content-Transfer-Encoding"))
		switch partType {
		case "text/plain":
			return content
		case "text/html":
			if htmlFallback == "" {
				htmlFallback = content
			}
		}
	}

	return stripHTML(htmlFallback)
}

func decodeTransferEncoding(r io.Reader, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		// Keep whatever decoded cleanly; a truncated body still carries signal.
		return string(data)
	}
	return strings.TrimSpace(string(data))
}

var (
	htmlTagPattern    = regexp.MustCompile(`(?s)<(script|style).*?</(script|style)>|<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)
)

func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllString(html, " ")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = whitespacePattern.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
