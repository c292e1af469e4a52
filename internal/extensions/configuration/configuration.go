// Package configuration implements the module that owns the SDK
// configuration shared state and the rules loaded from it.
package configuration

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mobilecore/internal/config"
	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
	"git.home.luguber.info/inful/mobilecore/internal/logfields"
	"git.home.luguber.info/inful/mobilecore/internal/resolver"
	"git.home.luguber.info/inful/mobilecore/internal/rules"
	"git.home.luguber.info/inful/mobilecore/internal/version"
)

const (
	ModuleName = "com.adobe.module.configuration"
	StateName  = "com.adobe.module.configuration"
)

// Request and state keys.
const (
	KeyUpdate   = "config.update"
	KeyFilePath = "config.filePath"
	KeyPrivacy  = "global.privacy"
	KeyRules    = "rules"
)

// ErrInvalidConfigFile is returned when a configuration file cannot be used.
var ErrInvalidConfigFile = errors.ConfigError("invalid configuration file").Build()

// Extension publishes the configuration shared state.
type Extension struct {
	*hub.Module

	initial  event.Data
	defs     []rules.Definition
	readFile func(string) ([]byte, error)

	mu         sync.Mutex
	current    event.Data
	dispatcher *hub.Dispatcher
}

// New returns a configuration module seeded with data and rule definitions.
func New(data map[string]any, defs []rules.Definition) *Extension {
	return &Extension{
		Module:   hub.NewModule(ModuleName),
		initial:  event.Data(data).Copy(),
		defs:     defs,
		readFile: os.ReadFile,
	}
}

// FromConfig seeds the module from the sdk and rules sections.
func FromConfig(cfg *config.Config) *Extension {
	return New(cfg.SDK, cfg.Rules)
}

func (x *Extension) SharedStateName() string { return StateName }
func (x *Extension) Version() string         { return version.Version }

func (x *Extension) OnRegistered() {
	if err := x.RegisterListener(event.TypeConfiguration, event.SourceRequestContent, hub.ListenerFunc(x.handleRequest)); err != nil {
		x.Logger().Error("Failed to register configuration listener", logfields.Error(err))
		return
	}
	d, err := x.CreateDispatcher()
	if err != nil {
		x.Logger().Error("Failed to create dispatcher", logfields.Error(err))
	}
	rs, err := rules.CompileAll(x.defs)
	if err != nil {
		x.Logger().Error("Configured rules rejected", logfields.Error(err))
	} else if len(rs) > 0 {
		_ = x.ReplaceRules(rs)
	}

	x.mu.Lock()
	x.dispatcher = d
	x.current = x.initial.Copy()
	if x.current == nil {
		x.current = event.Data{}
	}
	x.mu.Unlock()
	if len(x.initial) > 0 {
		x.publish("")
	}
}

func (x *Extension) OnUnregistered() {
	x.Logger().Debug("Configuration module unregistered")
}

// Current returns a copy of the merged configuration.
func (x *Extension) Current() event.Data {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.current.Copy()
}

func (x *Extension) handleRequest(e *event.Event) {
	d := e.DataView()
	if upd, ok := d.GetMap(KeyUpdate); ok {
		x.apply(upd, e.ResponsePairID())
	}
	if path, ok := d.GetString(KeyFilePath); ok && path != "" {
		x.loadFile(path, e)
	}
}

// apply merges update into the configuration and publishes the result.
func (x *Extension) apply(update event.Data, pairID string) {
	x.mu.Lock()
	x.current = x.current.Merge(update)
	x.mu.Unlock()
	if update.Has(KeyRules) {
		x.replaceRules(update[KeyRules])
	}
	x.publish(pairID)
}

// loadFile reads a YAML or JSON map on a module task. A Pending state is
// published at the request's number when possible and resolved once the
// file has been read.
func (x *Extension) loadFile(path string, e *event.Event) {
	at := e.Number()
	pending := x.CreateSharedState(at, resolver.Pending[event.Data]())
	pairID := e.ResponsePairID()
	ok := x.AddTaskToQueue("load "+filepath.Base(path), func() {
		data, err := x.parseFile(path)
		if err != nil {
			x.Logger().Warn("Configuration file not loaded", logfields.Path(path), logfields.Error(err))
			if pending {
				x.UpdateSharedState(at, resolver.Prev[event.Data]())
			}
			return
		}
		x.mu.Lock()
		x.current = x.current.Merge(data)
		merged := x.current.Copy()
		x.mu.Unlock()
		if data.Has(KeyRules) {
			x.replaceRules(data[KeyRules])
		}
		if pending {
			x.UpdateSharedState(at, resolver.Data(merged))
			x.respond(merged, pairID)
			return
		}
		x.publish(pairID)
	}, hub.TaskOptions{})
	if !ok && pending {
		x.UpdateSharedState(at, resolver.Prev[event.Data]())
	}
}

func (x *Extension) parseFile(path string) (event.Data, error) {
	raw, err := x.readFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read configuration file").
			WithContext("path", path).
			Build()
	}
	var data map[string]any
	// YAML is a superset of JSON, so one decoder covers both.
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, errors.WrapError(ErrInvalidConfigFile, errors.CategoryConfig, err.Error()).
			WithContext("path", path).
			Build()
	}
	return event.Data(data), nil
}

// replaceRules swaps this module's rules for the definitions in raw.
func (x *Extension) replaceRules(raw any) {
	defs, err := decodeDefinitions(raw)
	if err == nil {
		var rs []*rules.Rule
		if rs, err = rules.CompileAll(defs); err == nil {
			_ = x.ReplaceRules(rs)
			x.Logger().Info("Rules replaced", slog.Int("count", len(rs)))
			return
		}
	}
	x.Logger().Warn("Rules update rejected", logfields.Error(err))
}

// decodeDefinitions converts a generic rules value into definitions by
// round-tripping it through YAML.
func decodeDefinitions(raw any) ([]rules.Definition, error) {
	b, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var defs []rules.Definition
	if err := yaml.Unmarshal(b, &defs); err != nil {
		return nil, errors.WrapError(rules.ErrInvalidRule, errors.CategoryRules, err.Error()).Build()
	}
	return defs, nil
}

func (x *Extension) publish(pairID string) {
	merged := x.Current()
	if !x.PublishSharedState(merged) {
		x.Logger().Warn("Configuration state not published")
	}
	x.respond(merged, pairID)
}

func (x *Extension) respond(d event.Data, pairID string) {
	x.mu.Lock()
	disp := x.dispatcher
	x.mu.Unlock()
	b := event.NewBuilder("Configuration Response", event.TypeConfiguration, event.SourceResponseContent).SetData(d)
	if pairID != "" {
		b.SetPairID(pairID)
	}
	e, err := b.Build()
	if err != nil {
		x.Logger().Warn("Configuration response not built", logfields.Error(err))
		return
	}
	disp.Dispatch(e)
}

// UpdateRequest builds an event asking the module to merge d.
func UpdateRequest(d map[string]any) *event.Event {
	return event.NewBuilder("Configuration Update", event.TypeConfiguration, event.SourceRequestContent).
		SetData(event.Data{KeyUpdate: event.Data(d).Copy()}).
		MustBuild()
}

// FilePathRequest builds an event asking the module to load path.
func FilePathRequest(path string) *event.Event {
	return event.NewBuilder("Configuration File", event.TypeConfiguration, event.SourceRequestContent).
		SetData(event.Data{KeyFilePath: path}).
		MustBuild()
}

// Privacy extracts the privacy status from configuration data. Missing
// data is reported as unknown.
func Privacy(d event.Data) config.PrivacyStatus {
	raw, _ := d.GetString(KeyPrivacy)
	return config.NormalizePrivacy(strings.TrimSpace(raw))
}
