package configuration

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
)

const wait = 2 * time.Second

// observer records configuration responses.
type observer struct {
	*hub.Module
	mu        sync.Mutex
	responses []*event.Event
}

func (p *observer) SharedStateName() string { return "" }
func (p *observer) OnUnregistered()         {}

func (p *observer) OnRegistered() {
	_ = p.RegisterListener(event.TypeConfiguration, event.SourceResponseContent, hub.ListenerFunc(func(e *event.Event) {
		p.mu.Lock()
		p.responses = append(p.responses, e)
		p.mu.Unlock()
	}))
}

func (p *observer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.responses)
}

func (p *observer) last() *event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.responses[len(p.responses)-1]
}

func start(t *testing.T, x *Extension) (*hub.Hub, *observer) {
	t.Helper()
	h, err := hub.New(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { h.Dispose(wait) })
	p := &observer{Module: hub.NewModule("observer")}
	require.NoError(t, h.RegisterModule(p))
	require.NoError(t, h.RegisterModule(x))
	h.FinishModulesRegistration()
	require.Eventually(t, x.IsRegistered, wait, time.Millisecond)
	return h, p
}

func state(h *hub.Hub) event.Data {
	d, _ := h.SharedStateData(StateName, nil)
	return d
}

var tagRule = rules.Definition{
	ID:        "tagged",
	Condition: rules.ConditionDefinition{Key: "tag", Matcher: "eq", Values: []any{"yes"}},
	Consequences: []rules.ConsequenceDefinition{{
		ID: "c1", Type: "pb", Detail: map[string]any{"templateurl": "https://collect.test/p"},
	}},
}

func TestPublishesInitialState(t *testing.T) {
	x := New(map[string]any{KeyPrivacy: "optedin"}, []rules.Definition{tagRule})
	h, p := start(t, x)

	require.Eventually(t, func() bool { return state(h).StringOr(KeyPrivacy, "") == "optedin" }, wait, time.Millisecond)
	require.Eventually(t, func() bool { return p.count() == 1 }, wait, time.Millisecond)
	assert.Equal(t, 1, h.Rules().Count(ModuleName))
	assert.Equal(t, config.PrivacyOptedIn, Privacy(state(h)))
}

func TestEmptyConfigPublishesNothing(t *testing.T) {
	x := New(nil, nil)
	h, _ := start(t, x)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, h.HasSharedEventState(StateName))
	assert.Empty(t, x.Current())
}

func TestUpdateMergesAndResponds(t *testing.T) {
	x := New(map[string]any{KeyPrivacy: "optedin", "app.id": "one"}, nil)
	h, p := start(t, x)
	require.Eventually(t, func() bool { return p.count() == 1 }, wait, time.Millisecond)

	req := UpdateRequest(map[string]any{"app.id": "two", "rules": []any{
		map[string]any{
			"id":           "r1",
			"condition":    map[string]any{"key": "~type", "matcher": "ex"},
			"consequences": []any{map[string]any{"id": "c1", "type": "pb"}},
		},
	}})
	sent, err := h.Dispatch(req)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.count() == 2 }, wait, time.Millisecond)
	resp := p.last()
	assert.Equal(t, sent.ResponsePairID(), resp.PairID())
	assert.Equal(t, "two", resp.DataView().StringOr("app.id", ""))
	assert.Equal(t, "optedin", resp.DataView().StringOr(KeyPrivacy, ""))
	assert.Equal(t, "two", state(h).StringOr("app.id", ""))
	assert.Equal(t, 1, h.Rules().Count(ModuleName))
}

func TestInvalidRulesUpdateKeepsRules(t *testing.T) {
	x := New(map[string]any{"a": 1}, []rules.Definition{tagRule})
	h, p := start(t, x)
	require.Eventually(t, func() bool { return p.count() == 1 }, wait, time.Millisecond)

	_, err := h.Dispatch(UpdateRequest(map[string]any{"rules": []any{map[string]any{"id": ""}}}))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return p.count() == 2 }, wait, time.Millisecond)
	assert.Equal(t, 1, h.Rules().Count(ModuleName))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sdk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
global.privacy: optedout
rules:
  - id: from-file
    condition:
      key: tag
      matcher: eq
      values: ["yes"]
    consequences:
      - id: c1
        type: pb
`), 0o600))

	x := New(map[string]any{KeyPrivacy: "optedin"}, nil)
	h, p := start(t, x)
	require.Eventually(t, func() bool { return p.count() == 1 }, wait, time.Millisecond)

	_, err := h.Dispatch(FilePathRequest(path))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return Privacy(state(h)) == config.PrivacyOptedOut }, wait, time.Millisecond)
	require.Eventually(t, func() bool { return p.count() == 2 }, wait, time.Millisecond)
	assert.Equal(t, 1, h.Rules().Count(ModuleName))
}

func TestLoadFileFailureKeepsPreviousState(t *testing.T) {
	x := New(map[string]any{KeyPrivacy: "optedin"}, nil)
	read := make(chan struct{})
	x.readFile = func(string) ([]byte, error) {
		defer close(read)
		return nil, stderrors.New("no such file")
	}
	h, p := start(t, x)
	require.Eventually(t, func() bool { return p.count() == 1 }, wait, time.Millisecond)

	_, err := h.Dispatch(FilePathRequest("/missing.yaml"))
	require.NoError(t, err)
	<-read
	require.Eventually(t, func() bool { return x.PendingTasks() == 0 }, wait, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	slot := h.GetSharedEventState(StateName, nil)
	assert.True(t, slot.IsData())
	assert.Equal(t, "optedin", state(h).StringOr(KeyPrivacy, ""))
	assert.Equal(t, 1, p.count())
}

func TestPrivacy(t *testing.T) {
	tests := []struct {
		in   event.Data
		want config.PrivacyStatus
	}{
		{event.Data{KeyPrivacy: "optedin"}, config.PrivacyOptedIn},
		{event.Data{KeyPrivacy: "OPTEDOUT"}, config.PrivacyOptedOut},
		{event.Data{KeyPrivacy: "optunknown"}, config.PrivacyUnknown},
		{event.Data{KeyPrivacy: 3}, config.PrivacyUnknown},
		{nil, config.PrivacyUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Privacy(tt.in))
	}
}
