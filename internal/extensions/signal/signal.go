// Package signal sends postbacks triggered by rules consequences.
//
// Consequences of type "pb" and "pii" become hits in a durable queue. The
// queue sends them through the network service once configuration is known
// and the privacy status allows it.
package signal

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/extensions/configuration"
	"git.home.luguber.info/inful/mobilecore/internal/hitqueue"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/network"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

const ModuleName = "com.adobe.module.signal"

// Consequence types handled here.
const (
	ConsequencePostback = "pb"
	ConsequencePII      = "pii"
)

// Consequence detail keys.
const (
	DetailURL         = "templateurl"
	DetailBody        = "templatebody"
	DetailContentType = "contenttype"
	DetailTimeout     = "timeout"
)

// DefaultTimeout applies when a consequence carries no timeout.
const DefaultTimeout = 2 * time.Second

const disposeWait = time.Second

// Extension turns postback consequences into queued hits.
type Extension struct {
	*hub.Module

	service hitqueue.Service
	net     network.Service
	opts    []hitqueue.Option

	mu         sync.Mutex
	queue      *hitqueue.Queue[*Hit]
	configured bool
	privacy    config.PrivacyStatus
}

// New returns a signal module storing hits through service and sending them
// through net. opts are passed to the hit queue.
func New(service hitqueue.Service, net network.Service, opts ...hitqueue.Option) *Extension {
	return &Extension{
		Module:  hub.NewModule(ModuleName),
		service: service,
		net:     net,
		opts:    opts,
		privacy: config.PrivacyUnknown,
	}
}

func (x *Extension) SharedStateName() string { return "" }
func (x *Extension) Version() string         { return version.Version }

func (x *Extension) OnRegistered() {
	if err := x.RegisterListener(event.TypeRulesEngine, event.SourceResponseContent, hub.ListenerFunc(x.handleConsequence)); err != nil {
		x.Logger().Error("Failed to register consequence listener", logfields.Error(err))
		return
	}
	if err := x.RegisterListener(event.TypeHub, event.SourceSharedState, hub.ListenerFunc(x.handleStateChange)); err != nil {
		x.Logger().Error("Failed to register shared state listener", logfields.Error(err))
		return
	}
	x.AddTaskToQueue("open hit queue", x.openQueue, hub.TaskOptions{})
	x.applyConfiguration(nil)
}

// OnUnregistered closes the queue once every task queued before it has run.
func (x *Extension) OnUnregistered() {
	x.AddTaskToQueue("dispose hit queue", func() {
		x.mu.Lock()
		q := x.queue
		x.queue = nil
		x.mu.Unlock()
		if q != nil && !q.Dispose(disposeWait) {
			x.Logger().Warn("Hit queue still closing")
		}
	}, hub.TaskOptions{RequiredForUnregistration: true})
}

// Queue returns the hit queue, or nil before it is open.
func (x *Extension) Queue() *hitqueue.Queue[*Hit] {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.queue
}

func (x *Extension) openQueue() {
	q, err := hitqueue.New(x.service, hitSchema{}, hitqueue.ProcessorFunc[*Hit](x.process), x.opts...)
	if err != nil {
		x.Logger().Error("Hit queue unavailable", logfields.Error(err))
		return
	}
	// Pair ids and event numbers refer to the previous run.
	if !q.UpdateAllHits(map[string]any{ColumnPairID: "", ColumnEventNumber: int64(-1)}) {
		x.Logger().Warn("Stale hit columns not reset", logfields.Table(q.Table()))
	}

	x.mu.Lock()
	x.queue = q
	privacy := x.privacy
	x.mu.Unlock()
	x.applyPrivacy(q, privacy)
}

func (x *Extension) handleStateChange(e *event.Event) {
	if e.DataView().StringOr(hub.KeyStateOwner, "") != configuration.StateName {
		return
	}
	x.applyConfiguration(e)
}

// applyConfiguration reads the configuration state as of e.
func (x *Extension) applyConfiguration(e *event.Event) {
	slot := x.GetSharedEventState(configuration.StateName, e)
	d, ok := slot.Value()
	if !slot.IsData() || !ok {
		return
	}
	x.mu.Lock()
	x.configured = true
	x.privacy = configuration.Privacy(d)
	x.mu.Unlock()
	x.AddTaskToQueue("apply privacy", func() {
		if q := x.Queue(); q != nil {
			x.applyPrivacy(q, x.Privacy())
		}
	}, hub.TaskOptions{})
}

// Privacy returns the last privacy status seen in configuration.
func (x *Extension) Privacy() config.PrivacyStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.privacy
}

func (x *Extension) applyPrivacy(q *hitqueue.Queue[*Hit], privacy config.PrivacyStatus) {
	switch privacy {
	case config.PrivacyOptedIn:
		q.BringOnline()
	case config.PrivacyOptedOut:
		q.Suspend()
		q.DeleteAllHits()
	default:
		q.Suspend()
	}
	x.Logger().Debug("Privacy applied", slog.String("privacy", string(privacy)))
}

func (x *Extension) handleConsequence(e *event.Event) {
	c, ok := rules.ConsequenceFromData(e.DataView())
	if !ok || c.Type != ConsequencePostback && c.Type != ConsequencePII {
		return
	}
	hit, ok := x.hitFor(c, e)
	if !ok {
		return
	}
	if x.Privacy() == config.PrivacyOptedOut {
		x.Logger().Debug("Dropping postback, privacy opted out", logfields.Consequence(c.ID))
		return
	}
	x.AddTaskToQueue("queue hit", func() {
		q := x.Queue()
		if q == nil || !q.Queue(hit) {
			x.Logger().Warn("Postback not queued", logfields.Consequence(c.ID))
		}
	}, hub.TaskOptions{})
}

func (x *Extension) hitFor(c rules.Consequence, e *event.Event) (*Hit, bool) {
	detail := event.Data(c.Detail)
	url := strings.TrimSpace(detail.StringOr(DetailURL, ""))
	if url == "" {
		x.Logger().Debug("Consequence without url ignored", logfields.Consequence(c.ID))
		return nil, false
	}
	if c.Type == ConsequencePII && !strings.HasPrefix(strings.ToLower(url), "https://") {
		x.Logger().Warn("PII postback requires https", logfields.Consequence(c.ID), logfields.URL(url))
		return nil, false
	}
	timeout := int64(DefaultTimeout / time.Second)
	if t, ok := detail.GetInt64(DetailTimeout); ok && t > 0 {
		timeout = t
	}
	return &Hit{
		URL:         url,
		Body:        detail.StringOr(DetailBody, ""),
		ContentType: detail.StringOr(DetailContentType, ""),
		Timeout:     timeout,
		PairID:      e.PairID(),
		EventNumber: e.Number(),
	}, true
}

func (x *Extension) process(hit *Hit) hitqueue.RetryType {
	x.mu.Lock()
	configured, privacy := x.configured, x.privacy
	x.mu.Unlock()
	if !configured {
		return hitqueue.RetryBreak
	}
	if privacy == config.PrivacyOptedOut {
		return hitqueue.RetryNo
	}

	timeout := time.Duration(hit.Timeout) * time.Second
	req := network.Request{URL: hit.URL, ConnectTimeout: timeout, ReadTimeout: timeout}
	if hit.Body != "" {
		req.Method = http.MethodPost
		req.Body = []byte(hit.Body)
		if hit.ContentType != "" {
			req.Headers = map[string]string{"Content-Type": hit.ContentType}
		}
	}
	resp, err := x.net.Connect(context.Background(), req)
	switch {
	case err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300:
		x.Logger().Debug("Postback sent", logfields.HitID(hit.Identifier), logfields.Status(resp.StatusCode))
		return hitqueue.RetryNo
	case network.Recoverable(resp, err):
		x.Logger().Debug("Postback failed, will retry", logfields.HitID(hit.Identifier), logfields.URL(hit.URL))
		return hitqueue.RetryYes
	default:
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		x.Logger().Warn("Postback rejected", logfields.HitID(hit.Identifier), logfields.URL(hit.URL), logfields.Status(status))
		return hitqueue.RetryNo
	}
}
