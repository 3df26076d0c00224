package model

import "strings"

// Message represents a single email message extracted from an mbox container.
type Message struct {
	Container string
	Index     int // 1-based position inside the container
	From      string
	To        string
	Subject   string
	Raw       []byte
}

// Envelope wraps a message alongside an optional error encountered while decoding.
type Envelope struct {
	Message Message
	Err     error
}

// Fields holds the normalized, searchable view of a message.
type Fields struct {
	From     string
	To       string
	Subject  string
	Body     string
	Original []byte
}

// Corpus joins sender, recipient, subject and body, one per line.
func (f Fields) Corpus() string {
	return strings.Join([]string{f.From, f.To, f.Subject, f.Body}, "\n")
}
