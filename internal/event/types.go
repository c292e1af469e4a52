package event

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type names the kind of an event. The vocabulary is open; extensions define their own.
type Type string

// Source names the origin or intent of an event.
type Source string

const (
	typePrefix   = "com.adobe.eventtype."
	sourcePrefix = "com.adobe.eventsource."
)

const (
	TypeAcquisition   Type = typePrefix + "acquisition"
	TypeAnalytics     Type = typePrefix + "analytics"
	TypeAssurance     Type = typePrefix + "assurance"
	TypeConfiguration Type = typePrefix + "configuration"
	TypeCustom        Type = typePrefix + "custom"
	TypeGenericTrack  Type = typePrefix + "generic.track"
	TypeHub           Type = typePrefix + "hub"
	TypeIdentity      Type = typePrefix + "identity"
	TypeLifecycle     Type = typePrefix + "lifecycle"
	TypePII           Type = typePrefix + "pii"
	TypeRulesEngine   Type = typePrefix + "rulesengine"
	TypeSignal        Type = typePrefix + "signal"
	TypeSystem        Type = typePrefix + "system"
	TypeWildcard      Type = typePrefix + "_wildcard_"
)

const (
	SourceNone             Source = sourcePrefix + "none"
	SourceOS               Source = sourcePrefix + "os"
	SourceRequestContent   Source = sourcePrefix + "requestcontent"
	SourceRequestIdentity  Source = sourcePrefix + "requestidentity"
	SourceRequestReset     Source = sourcePrefix + "requestreset"
	SourceResponseContent  Source = sourcePrefix + "responsecontent"
	SourceResponseIdentity Source = sourcePrefix + "responseidentity"
	SourceSharedState      Source = sourcePrefix + "sharedstate"
	SourceBooted           Source = sourcePrefix + "booted"
	SourceWildcard         Source = sourcePrefix + "_wildcard_"
)

var folder = cases.Lower(language.Und)

// NewType case-folds and trims name. Type comparisons are case-insensitive.
func NewType(name string) Type {
	return Type(folder.String(strings.TrimSpace(name)))
}

// NewSource case-folds and trims name.
func NewSource(name string) Source {
	return Source(folder.String(strings.TrimSpace(name)))
}

func (t Type) String() string   { return string(t) }
func (s Source) String() string { return string(s) }

// Short returns the name without the com.adobe.eventtype. prefix.
func (t Type) Short() string { return strings.TrimPrefix(string(t), typePrefix) }

// Short returns the name without the com.adobe.eventsource. prefix.
func (s Source) Short() string { return strings.TrimPrefix(string(s), sourcePrefix) }
