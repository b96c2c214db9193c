// Package notify routes outbound notifications (mail, SMS, WhatsApp,
// Telegram) for a recipient to pluggable provider drivers.
//
// For every recipient the service renders a persisted template once, then
// resolves a channel-specific address, formats the payload and hands it to
// the driver selected in a provider.Registry. A failure on one channel never
// stops the other channels, and a failing recipient never stops a batch.
//
// # Basic Usage
//
//	cfg, err := config.Load("notify.yaml", ".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	svc, err := notify.NewServiceFromConfig(cfg,
//	    notify.WithStore(postgres.NewFromDB(db)),
//	    notify.WithCatalog(translations),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	res, err := svc.NotifyAll(ctx, recipients, notify.Notification{
//	    Template: notify.TemplateKey{Language: "it", Type: "invoice", SubjectType: "order", SubjectID: "42"},
//	    Channels: []provider.Capability{provider.Mail, provider.SMS},
//	    Params:   map[string]any{"total": "12,50"},
//	})
//
// # Addresses
//
// Recipients expose attributes through the Attributes interface. The
// ContactResolver tries a list of attribute names per channel (email, phone,
// mobile, ...) and falls back to the optional MailRoutable, SMSRoutable,
// WhatsAppRoutable and TelegramRoutable interfaces. A recipient with no
// usable address skips the channel; the result has status "skipped".
//
// # Results
//
// Notify returns one DispatchResult per channel. NotifyAll and NotifyIDs
// return a BulkResult whose counts are per recipient: a recipient that
// raised no render or wiring error counts all of its channels as successes;
// one that did counts all of them as failures. The per-channel outcomes are
// kept in BulkResult.Recipients.
//
// # Storage Backends
//
// The store package defines the template repository:
//   - PostgreSQL (store/postgres) - accepts *sql.DB or *sqlx.DB
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - Redis (store/redis) - accepts redis.Cmdable
//   - In-memory (store/memory) - for testing
//
// # Events
//
// Every channel attempt publishes a ChannelDispatchedEvent and every batch a
// BulkCompletedEvent through github.com/rbaliyan/event/v3. Events are dropped
// unless WithEventTransport or WithRedisClient is set:
//
//	svc, _ := notify.NewService(
//	    notify.WithStore(store),
//	    notify.WithRegistry(registry),
//	    notify.WithRedisClient(redisClient),
//	)
//	svc.Connect(ctx)
//	svc.Events().ChannelDispatched.Subscribe(ctx, handler)
//
// # Retries
//
// Dispatch does not retry. Queue layers that re-run a notification can use
// IsRetryableError together with the retry package and the retry policy
// declared per channel in the configuration.
package notify
