package rules

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/mobilecore/internal/event"
)

// Special token keys.
const (
	KeyEventType     = "~type"
	KeyEventSource   = "~source"
	KeyTimestampUnix = "~timestampu"
	KeyTimestampISO  = "~timestampz"
	KeySDKVersion    = "~sdkver"
	KeyCachebust     = "~cachebust"
	KeyAllURL        = "~all_url"
	KeyAllJSON       = "~all_json"
	KeySharedState   = "~state."

	urlEncodePrefix = "urlenc("
	urlEncodeSuffix = ")"

	// stateKeyDelimiter separates a shared state name from the key inside it.
	stateKeyDelimiter = "/"

	cachebustBound = 100000000
	isoLayout      = "2006-01-02T15:04:05-0700"
)

var tokenPattern = regexp.MustCompile(`\{%([a-zA-Z0-9_~.()/\-]+?)%\}`)

// StateReader exposes module shared states to token expansion. Data returns
// the state named name as of e, or false when it is not resolved to data.
type StateReader interface {
	SharedStateData(name string, e *event.Event) (event.Data, bool)
}

// TokenParser expands {%key%} tokens against an event.
type TokenParser struct {
	states     StateReader
	sdkVersion string
	now        func() time.Time
}

// NewTokenParser returns a parser reading shared states from states, which may be nil.
func NewTokenParser(states StateReader, sdkVersion string) *TokenParser {
	return &TokenParser{states: states, sdkVersion: sdkVersion, now: time.Now}
}

// ExpandKey returns the value of key for e. Special keys start with "~";
// anything else is looked up in the event data with nested maps flattened
// into "a.b" keys.
func (p *TokenParser) ExpandKey(key string, e *event.Event) (any, bool) {
	if key == "" || e == nil {
		return nil, false
	}
	switch key {
	case KeyEventType:
		return string(e.Type()), true
	case KeyEventSource:
		return string(e.Source()), true
	case KeyTimestampUnix:
		return strconv.FormatInt(p.now().Unix(), 10), true
	case KeyTimestampISO:
		return p.now().Format(isoLayout), true
	case KeySDKVersion:
		return p.sdkVersion, true
	case KeyCachebust:
		return strconv.Itoa(rand.IntN(cachebustBound)), true
	case KeyAllURL:
		return allURL(e.DataView()), true
	case KeyAllJSON:
		b, err := json.Marshal(e.DataView())
		if err != nil {
			return "", true
		}
		return string(b), true
	}
	if strings.HasPrefix(key, KeySharedState) {
		return p.sharedStateKey(strings.TrimPrefix(key, KeySharedState), e)
	}
	v, ok := e.DataView().Flatten()[key]
	return v, ok
}

func (p *TokenParser) sharedStateKey(ref string, e *event.Event) (any, bool) {
	if p.states == nil {
		return nil, false
	}
	idx := strings.LastIndex(ref, stateKeyDelimiter)
	if idx <= 0 || idx == len(ref)-1 {
		return nil, false
	}
	data, ok := p.states.SharedStateData(ref[:idx], e)
	if !ok {
		return nil, false
	}
	v, ok := data.Flatten()[ref[idx+1:]]
	return v, ok
}

// ExpandTokensForString replaces every token in s. Tokens whose key has no
// value expand to the empty string.
func (p *TokenParser) ExpandTokensForString(s string, e *event.Event) string {
	return tokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		key := token[2 : len(token)-2]
		encode := false
		if strings.HasPrefix(key, urlEncodePrefix) && strings.HasSuffix(key, urlEncodeSuffix) {
			key = key[len(urlEncodePrefix) : len(key)-len(urlEncodeSuffix)]
			encode = true
		}
		v, ok := p.ExpandKey(key, e)
		if !ok {
			return ""
		}
		out := toString(v)
		if encode {
			out = urlEncode(out)
		}
		return out
	})
}

// ExpandValue expands tokens in every string inside v, descending into maps and slices.
func (p *TokenParser) ExpandValue(v any, e *event.Event) any {
	switch t := v.(type) {
	case string:
		return p.ExpandTokensForString(t, e)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = p.ExpandValue(inner, e)
		}
		return out
	case event.Data:
		return p.ExpandValue(map[string]any(t), e)
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = p.ExpandValue(inner, e)
		}
		return out
	default:
		return v
	}
}

// ExpandMap returns a copy of m with tokens expanded.
func (p *TokenParser) ExpandMap(m map[string]any, e *event.Event) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := p.ExpandValue(m, e).(map[string]any)
	return out
}

func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func allURL(d event.Data) string {
	flat := d.Flatten()
	if len(flat) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range flat {
		values.Set(k, toString(v))
	}
	return strings.ReplaceAll(values.Encode(), "+", "%20")
}

// toString renders a value the way it is substituted into a template.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, event.Data, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
