package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dhcgn/mbox-ediscovery/model"
)

func newMessage(raw string) model.Message {
	return model.Message{Container: "test.mbox", Index: 1, Raw: []byte(raw)}
}

func TestExtract_PlainMessage(t *testing.T) {
	raw := "From: Alice <Alice@Example.com>\r\nTo: Bob <bob@example.com>\r\nSubject: Invoice 123\r\n\r\nPlease PAY now.\r\n"

	f := Extract(newMessage(raw), nil)

	if f.From != "alice <alice@example.com>" {
		t.Errorf("From = %q", f.From)
	}
	if f.To != "bob <bob@example.com>" {
		t.Errorf("To = %q", f.To)
	}
	if f.Subject != "invoice 123" {
		t.Errorf("Subject = %q", f.Subject)
	}
	if !strings.Contains(f.Body, "please pay now.") {
		t.Errorf("Body = %q", f.Body)
	}
	if string(f.Original) != raw {
		t.Errorf("Original differs from raw message")
	}
	if want := f.From + "\n" + f.To + "\n" + f.Subject + "\n" + f.Body; f.Corpus() != want {
		t.Errorf("Corpus() = %q, want %q", f.Corpus(), want)
	}
}

func TestExtract_DecodesTransferEncodingAndWords(t *testing.T) {
	raw := "From: =?UTF-8?Q?J=C3=BCrgen?= <j@example.com>\n" +
		"Subject: =?UTF-8?B?UmVjaG51bmc=?=\n" +
		"Content-Type: text/plain; charset=utf-8\n" +
		"Content-Transfer-Encoding: base64\n\n" +
		"SW52b2ljZSBkdWU=\n"

	f := Extract(newMessage(raw), nil)

	if f.From != "jürgen <j@example.com>" {
		t.Errorf("From = %q", f.From)
	}
	if f.Subject != "rechnung" {
		t.Errorf("Subject = %q", f.Subject)
	}
	if f.Body != "invoice due" {
		t.Errorf("Body = %q", f.Body)
	}
}

func TestExtract_Multipart(t *testing.T) {
	raw := "From: a@example.com\n" +
		"Content-Type: multipart/mixed; boundary=XYZ\n\n" +
		"--XYZ\n" +
		"Content-Type: text/plain\n\n" +
		"Plain Part\n" +
		"--XYZ\n" +
		"Content-Type: text/html\n\n" +
		"<html><style>p{}</style><p>Html <b>Part</b></p></html>\n" +
		"--XYZ\n" +
		"Content-Type: text/plain\n" +
		"Content-Disposition: attachment; filename=secret.txt\n\n" +
		"attached secret\n" +
		"--XYZ--\n"

	f := Extract(newMessage(raw), nil)

	if !strings.Contains(f.Body, "plain part") {
		t.Errorf("Body missing plain part: %q", f.Body)
	}
	if !strings.Contains(f.Body, "html part") {
		t.Errorf("Body missing html part: %q", f.Body)
	}
	if strings.Contains(f.Body, "secret") || strings.Contains(f.Body, "p{}") {
		t.Errorf("Body contains attachment or style text: %q", f.Body)
	}
}

func TestExtract_InvalidBytesNeverFail(t *testing.T) {
	raw := "Subject: bad \xff bytes\n\nbody \xfe\xfd end\n"

	f := Extract(newMessage(raw), nil)

	if !utf8.ValidString(f.Subject) || !utf8.ValidString(f.Body) {
		t.Fatalf("fields are not valid UTF-8: %q %q", f.Subject, f.Body)
	}
	if !strings.Contains(f.Body, "end") {
		t.Errorf("Body = %q", f.Body)
	}
	if string(f.Original) != raw {
		t.Errorf("Original must stay byte-identical")
	}
}

func TestExtract_MissingHeadersAndBody(t *testing.T) {
	f := Extract(newMessage("X-Other: 1\n\n"), nil)

	if f.From != "" || f.To != "" || f.Subject != "" || f.Body != "" {
		t.Errorf("Extract() = %+v, want empty fields", f)
	}
}

func TestExtract_UnparsableKeepsOriginal(t *testing.T) {
	msg := model.Message{Raw: []byte("no colon here\n\nbody"), From: "Fallback@Example.com"}

	f := Extract(msg, nil)

	if f.From != "fallback@example.com" {
		t.Errorf("From = %q", f.From)
	}
	if f.Body != "" {
		t.Errorf("Body = %q, want empty", f.Body)
	}
	if string(f.Original) != string(msg.Raw) {
		t.Errorf("Original differs")
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize([]byte("ok\xffok"))
	if got != "ok�ok" {
		t.Fatalf("Sanitize() = %q", got)
	}
}

func TestExtract_LargeBodyIsReadInFull(t *testing.T) {
	raw := "Subject: big\n\n" + strings.Repeat("a", 9<<20) + " needle\n"

	f := Extract(newMessage(raw), nil)

	if !strings.HasSuffix(strings.TrimRight(f.Body, "\n"), " needle") {
		t.Errorf("Body lost its tail, len = %d", len(f.Body))
	}
}
