package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/segment"
	"github.com/rbaliyan/notify/theme"
)

func rendered(body string) *theme.Content {
	return &theme.Content{
		TemplateID:  "tpl-1",
		Theme:       "ark",
		FromAddress: "noreply@example.com",
		FromName:    "Acme",
		Subject:     "Ordine 42",
		BodyHTML:    body,
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain passthrough", "Ciao  Mario\n", "Ciao  Mario\n"},
		{"paragraphs", "<p>Ciao Mario</p><p>Ordine 42</p>", "Ciao Mario\n\nOrdine 42"},
		{"br", "Riga 1<br>Riga 2<br/>Riga 3", "Riga 1\nRiga 2\nRiga 3"},
		{"entities", "Tom &amp; Jerry &euro;5", "Tom & Jerry €5"},
		{"inline tags", "Hi <b>there</b>, <a href=\"x\">click</a>", "Hi there, click"},
		{"script and style", "<style>p{}</style>Body<script>alert(1)</script>", "Body"},
		{"whitespace", "<div>\n   Ciao\n\n\n   Mario  </div>", "Ciao\n\nMario"},
		{"image only", `<img src="x.png" />`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"città", 4, "citt"},
		{"città", 5, "città"},
		{"città", 10, "città"},
		{"città", 0, "città"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestMailFormatter(t *testing.T) {
	msg, err := Mail{}.Format(rendered("<p>Ciao</p>"))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Subject != "Ordine 42" || msg.HTML != "<p>Ciao</p>" || msg.Text != "Ciao" {
		t.Errorf("message = %+v", msg)
	}
	if msg.From != "noreply@example.com" || msg.FromName != "Acme" {
		t.Errorf("from = %q %q", msg.From, msg.FromName)
	}
	if msg.Metadata[MetaTemplateID] != "tpl-1" || msg.Metadata[MetaTheme] != "ark" {
		t.Errorf("metadata = %v", msg.Metadata)
	}
	if msg.To != "" {
		t.Errorf("To should be left empty, got %q", msg.To)
	}
}

func TestSMSFormatter(t *testing.T) {
	long := strings.Repeat("a", 1000)

	msg, err := SMS{MaxSegments: 2}.Format(rendered("<p>" + long + "</p>"))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if n := segment.Count(msg.Text).Segments; n != 2 {
		t.Errorf("segments = %d, want 2", n)
	}
	if msg.Subject != "" || msg.HTML != "" {
		t.Errorf("sms should carry text only: %+v", msg)
	}

	if _, err := (SMS{}).Format(rendered("<p> </p>")); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("error = %v, want ErrEmptyBody", err)
	}
}

func TestChatFormatter(t *testing.T) {
	f := Chat{Channel: provider.Telegram, MaxRunes: 5}
	msg, err := f.Format(rendered("<b>Ciao Mario</b>"))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Text != "Ciao " {
		t.Errorf("text = %q", msg.Text)
	}
	if f.Capability() != provider.Telegram {
		t.Errorf("capability = %s", f.Capability())
	}
}

func TestRegistry(t *testing.T) {
	reg := DefaultRegistry()
	for _, c := range provider.Capabilities() {
		if _, ok := reg.Lookup(c); !ok {
			t.Errorf("no formatter for %s", c)
		}
	}

	msg, err := reg.Format(provider.WhatsApp, rendered(strings.Repeat("x", MaxChatRunes+10)))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(msg.Text) != MaxChatRunes {
		t.Errorf("len = %d, want %d", len(msg.Text), MaxChatRunes)
	}

	if _, err := NewRegistry().Format(provider.SMS, rendered("x")); !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("error = %v, want ErrUnsupportedCapability", err)
	}

	for _, c := range provider.Capabilities() {
		if _, err := reg.Format(c, nil); !errors.Is(err, ErrNoContent) {
			t.Errorf("%s: error = %v, want ErrNoContent", c, err)
		}
	}

	reg.Register(SMS{MaxSegments: 1})
	msg, err = reg.Format(provider.SMS, rendered(strings.Repeat("y", 400)))
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if len(msg.Text) != segment.SingleLimit {
		t.Errorf("len = %d, want %d", len(msg.Text), segment.SingleLimit)
	}
}
