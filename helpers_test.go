package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/rbaliyan/notify/catalog"
	"github.com/rbaliyan/notify/provider"
	"github.com/rbaliyan/notify/store/memory"
	"github.com/rbaliyan/notify/theme"
)

const fakeDriverName = "fake"

var errProviderDown = errors.New("provider down")

type sentMessage struct {
	Channel provider.Capability
	Msg     provider.Message
}

// fakeDriver implements every capability contract and records what it sends.
type fakeDriver struct {
	mu      sync.Mutex
	sent    []sentMessage
	fail    map[provider.Capability]error
	reject  map[provider.Capability]bool
	panicOn map[provider.Capability]bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		fail:    make(map[provider.Capability]error),
		reject:  make(map[provider.Capability]bool),
		panicOn: make(map[provider.Capability]bool),
	}
}

func (d *fakeDriver) Name() string { return fakeDriverName }

func (d *fakeDriver) send(c provider.Capability, msg *provider.Message) (*provider.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOn[c] {
		panic("boom")
	}
	if err := d.fail[c]; err != nil {
		return &provider.Response{StatusCode: 503, Error: err.Error()}, &provider.RequestError{
			Driver: fakeDriverName, Op: "send", StatusCode: 503, Err: err,
		}
	}
	if d.reject[c] {
		return &provider.Response{StatusCode: 200, Error: "rejected by provider"}, nil
	}
	d.sent = append(d.sent, sentMessage{Channel: c, Msg: *msg})
	return &provider.Response{Success: true, MessageID: string(c) + "-" + msg.To, StatusCode: 200}, nil
}

func (d *fakeDriver) SendMail(_ context.Context, msg *provider.Message) (*provider.Response, error) {
	return d.send(provider.Mail, msg)
}

func (d *fakeDriver) SendSMS(_ context.Context, msg *provider.Message) (*provider.Response, error) {
	return d.send(provider.SMS, msg)
}

func (d *fakeDriver) SendWhatsApp(_ context.Context, msg *provider.Message) (*provider.Response, error) {
	return d.send(provider.WhatsApp, msg)
}

func (d *fakeDriver) SendTelegram(_ context.Context, msg *provider.Message) (*provider.Response, error) {
	return d.send(provider.Telegram, msg)
}

func (d *fakeDriver) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sentMessage, len(d.sent))
	copy(out, d.sent)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFakeRegistry returns a registry whose default driver for every
// capability is d.
func newFakeRegistry(t *testing.T, d *fakeDriver) *provider.Registry {
	t.Helper()
	defaults := make(map[provider.Capability]string)
	for _, c := range provider.Capabilities() {
		defaults[c] = fakeDriverName
	}
	reg := provider.NewRegistry(
		provider.WithDefaultDrivers(defaults),
		provider.WithLogger(discardLogger()),
	)
	if err := reg.Register(fakeDriverName, func() (provider.Driver, error) { return d, nil }); err != nil {
		t.Fatalf("register fake driver: %v", err)
	}
	return reg
}

func newTestCatalog() *catalog.Map {
	c := catalog.NewMap("en")
	c.Set("en", "notifications.invoice.order.subject", "Invoice ##subject_id##")
	c.Set("en", "notifications.invoice.order.body", "<p>Hello ##name##, your invoice is ready.</p>")
	c.Set("it", "notifications.invoice.order.subject", "Fattura ##subject_id##")
	c.Set("it", "notifications.invoice.order.body", "<p>Ciao ##name##, la fattura è pronta.</p>")
	return c
}

func newTestRenderer(t *testing.T) theme.Renderer {
	t.Helper()
	s := memory.New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect store: %v", err)
	}
	return theme.New(s, newTestCatalog(), theme.WithLogger(discardLogger()))
}

func invoiceNotification(channels ...provider.Capability) Notification {
	return Notification{
		Template: TemplateKey{Language: "en", Type: "invoice", SubjectType: "order", SubjectID: "42"},
		Channels: channels,
	}
}

func contact(id string, attrs map[string]string) *Contact {
	return &Contact{ID: id, Attrs: attrs, Params: map[string]any{"name": id}}
}

// routedRecipient has no attributes and answers through the Routable interfaces.
type routedRecipient struct {
	id    string
	email string
	phone string
}

func (r routedRecipient) RecipientID() string             { return r.id }
func (r routedRecipient) RouteMail(context.Context) string { return r.email }
func (r routedRecipient) RouteSMS(context.Context) string  { return r.phone }

// failingRenderer fails for the listed recipients and delegates otherwise.
type failingRenderer struct {
	next  theme.Renderer
	fail  map[string]bool
	panic map[string]bool
}

func (f failingRenderer) Resolve(ctx context.Context, req theme.Request) (*theme.Content, error) {
	name, _ := req.Params["name"].(string)
	if f.panic[name] {
		panic("render exploded")
	}
	if f.fail[name] {
		return nil, errors.New("template broken")
	}
	return f.next.Resolve(ctx, req)
}
