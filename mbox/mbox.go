package mbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"

	"github.com/dhcgn/mbox-ediscovery/model"
)

var (
	ErrContainerRead = errors.New("container read failed")
	ErrMessageParse  = errors.New("message parse failed")
)

// ContainerReadError means a container could not be opened or its framing is broken.
type ContainerReadError struct {
	Path string
	Err  error
}

func (e *ContainerReadError) Error() string {
	return fmt.Sprintf("read container %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ContainerReadError) Unwrap() error { return e.Err }

func (e *ContainerReadError) Is(target error) bool { return target == ErrContainerRead }

// MessageParseError is reported for a single message that could not be parsed.
type MessageParseError struct {
	Path  string
	Index int
	Err   error
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("message %d in %s: %v", e.Index, filepath.Base(e.Path), e.Err)
}

func (e *MessageParseError) Unwrap() error { return e.Err }

func (e *MessageParseError) Is(target error) bool { return target == ErrMessageParse }

// Reader yields the messages of one container.
type Reader struct {
	path   string
	logger *slog.Logger
	file   *os.File
	err    error
}

// Open opens the container at path.
func Open(path string, logger *slog.Logger) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ContainerReadError{Path: path, Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &ContainerReadError{Path: path, Err: err}
	}
	if info.IsDir() {
		file.Close()
		return nil, &ContainerReadError{Path: path, Err: errors.New("is a directory")}
	}
	return &Reader{path: path, logger: logger, file: file}, nil
}

// Path returns the container path.
func (r *Reader) Path() string {
	return r.path
}

// Messages returns the container's messages in file order. A message that
// fails to parse is yielded as an envelope carrying a *MessageParseError and
// iteration continues. If the container framing fails, iteration stops and
// Err reports a *ContainerReadError.
func (r *Reader) Messages(ctx context.Context) iter.Seq[model.Envelope] {
	return func(yield func(model.Envelope) bool) {
		if _, err := r.file.Seek(0, io.SeekStart); err != nil {
			r.err = &ContainerReadError{Path: r.path, Err: err}
			return
		}
		r.err = nil
		eol, err := detectLineEnding(r.file)
		if err != nil {
			r.err = &ContainerReadError{Path: r.path, Err: err}
			return
		}
		reader := mboxlib.NewReader(r.file)

		for idx := 1; ; idx++ {
			if err := ctx.Err(); err != nil {
				r.err = err
				return
			}

			msgReader, err := reader.NextMessage()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				r.fail(fmt.Errorf("message %d: %w", idx, err))
				return
			}

			text, err := io.ReadAll(msgReader)
			if err != nil {
				r.fail(fmt.Errorf("message %d read: %w", idx, err))
				return
			}
			raw := storedForm(text, eol)

			msg, err := parseMail(raw)
			if err != nil {
				perr := &MessageParseError{Path: r.path, Index: idx, Err: err}
				if r.logger != nil {
					r.logger.Warn("mbox message skipped", "path", r.path, "index", idx, "err", err)
				}
				if !yield(model.Envelope{Message: model.Message{Container: r.path, Index: idx, Raw: raw}, Err: perr}) {
					return
				}
				continue
			}

			msg.Container = r.path
			msg.Index = idx
			msg.Raw = raw

			if !yield(model.Envelope{Message: msg}) {
				return
			}
		}
	}
}

// Err returns the container-level error that ended the last Messages pass.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func (r *Reader) fail(err error) {
	r.err = &ContainerReadError{Path: r.path, Err: err}
	if r.logger != nil {
		r.logger.Error("mbox stream error", "path", r.path, "err", err)
	}
}

// detectLineEnding reports the line ending of the container's first line and
// rewinds the file. Containers without a complete first line count as LF.
func detectLineEnding(file *os.File) (string, error) {
	line, err := bufio.NewReader(file).ReadSlice('\n')
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", err
	}
	if _, serr := file.Seek(0, io.SeekStart); serr != nil {
		return "", serr
	}
	if bytes.HasSuffix(line, []byte("\r\n")) {
		return "\r\n", nil
	}
	return "\n", nil
}

// storedForm turns go-mbox message text back into the bytes kept in the
// container. go-mbox ends every line with CRLF and strips one '>' from
// ">From " lines; a line starting with "From " inside a message can only
// come from such a quoted line.
func storedForm(text []byte, eol string) []byte {
	lines := bytes.Split(text, []byte("\r\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}

	out := make([]byte, 0, len(text))
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte("From ")) {
			out = append(out, '>')
		}
		out = append(out, line...)
		out = append(out, eol...)
	}
	return out
}

func parseMail(raw []byte) (model.Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return model.Message{}, err
	}

	return model.Message{
		From:    entity.Header.Get("From"),
		To:      entity.Header.Get("To"),
		Subject: entity.Header.Get("Subject"),
	}, nil
}

// Read opens an mbox file and iterates through its parsable messages,
// calling the provided callback for each message.
func Read(ctx context.Context, path string, callback func(m model.Message) error) error {
	r, err := Open(path, nil)
	if err != nil {
		return err
	}
	defer r.Close()

	for env := range r.Messages(ctx) {
		if env.Err != nil {
			continue
		}
		if err := callback(env.Message); err != nil {
			return err
		}
	}
	return r.Err()
}

// CountMessages counts the total number of messages in an mbox file.
func CountMessages(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &ContainerReadError{Path: path, Err: err}
	}
	defer file.Close()
	reader := mboxlib.NewReader(file)

	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, &ContainerReadError{Path: path, Err: err}
		}

		// Just consume the message without parsing
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return count, &ContainerReadError{Path: path, Err: err}
		}
		count++
	}
}
