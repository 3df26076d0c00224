// Package extract derives the normalized, searchable fields of a message.
package extract

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/unicode"

	"github.com/dhcgn/mbox-ediscovery/model"
)

// Extract returns lower-cased sender, recipient, subject and body text plus
// the message's original serialized form. It never fails: undecodable
// content degrades to replacement characters or an empty body.
func Extract(msg model.Message, logger *slog.Logger) model.Fields {
	fields := model.Fields{
		From:     normalize(msg.From),
		To:       normalize(msg.To),
		Subject:  normalize(msg.Subject),
		Original: msg.Raw,
	}

	entity, err := message.Read(bytes.NewReader(msg.Raw))
	if entity == nil {
		if logger != nil {
			logger.Debug("header decode failed", "container", msg.Container, "index", msg.Index, "err", err)
		}
		return fields
	}

	fields.From = headerText(entity.Header, "From")
	fields.To = headerText(entity.Header, "To")
	fields.Subject = headerText(entity.Header, "Subject")
	body, err := bodyText(entity)
	if err != nil && logger != nil {
		logger.Warn("body partially decoded", "container", msg.Container, "index", msg.Index, "err", err)
	}
	fields.Body = normalize(body)

	return fields
}

func headerText(h message.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		v = h.Get(key)
	}
	return normalize(v)
}

func normalize(s string) string {
	return strings.ToLower(Sanitize([]byte(s)))
}

// Sanitize converts b to valid UTF-8, replacing invalid sequences with U+FFFD.
func Sanitize(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}

// bodyText returns the decoded payload of a single-part message, or the
// concatenated text/plain and text/html leaves of a multipart one. Parts are
// read in full; on a read error the text decoded so far is kept.
func bodyText(entity *message.Entity) (string, error) {
	if !isMultipart(entity) {
		data, err := readPart(entity)
		return string(data), err
	}

	var parts []string
	var readErr error
	err := entity.Walk(func(path []int, part *message.Entity, err error) error {
		if part == nil {
			return nil
		}
		if isMultipart(part) {
			return nil
		}
		disp, _, _ := part.Header.ContentDisposition()
		if strings.EqualFold(disp, "attachment") {
			return nil
		}
		mediaType, _, _ := part.Header.ContentType()
		if !strings.HasPrefix(mediaType, "text/plain") && !strings.HasPrefix(mediaType, "text/html") && mediaType != "" {
			return nil
		}
		data, err := readPart(part)
		if err != nil && readErr == nil {
			readErr = err
		}
		if strings.HasPrefix(mediaType, "text/html") {
			parts = append(parts, htmlToText(data))
		} else {
			parts = append(parts, string(data))
		}
		return nil
	})
	if err == nil {
		err = readErr
	}

	return strings.Join(parts, "\n"), err
}

func isMultipart(entity *message.Entity) bool {
	mediaType, _, _ := entity.Header.ContentType()
	return strings.HasPrefix(mediaType, "multipart/")
}

func readPart(entity *message.Entity) ([]byte, error) {
	return io.ReadAll(entity.Body)
}

func htmlToText(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	var b strings.Builder
	skip := false
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			skip = string(name) == "script" || string(name) == "style"
		case html.EndTagToken:
			skip = false
		case html.TextToken:
			if skip {
				continue
			}
			t := strings.TrimSpace(string(z.Text()))
			if t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		}
	}
}
