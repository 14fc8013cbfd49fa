package systems

import (
	"fmt"

	"github.com/spaghettifunk/preloader/engine/assets"
	"github.com/spaghettifunk/preloader/engine/core"
)

// SettleFunc reports that one dispatched asset finished, successfully when
// err is nil. It may be called from any goroutine, exactly once per load.
type SettleFunc func(err error)

// Handler loads and unloads one kind of resource. Load must not block on the
// asset itself: it either settles before returning (synchronous handlers such
// as fonts) or hands the work off and settles later. A returned error is a
// configuration problem and aborts the run; asset failures go through settle.
type Handler interface {
	Load(d assets.Descriptor, settle SettleFunc) error
	Unload(d assets.Descriptor) error
}

// The collaborator contracts below are what concrete caches implement. Paths
// are the descriptor's Src as given.

type ImageCache interface {
	LoadAsync(path string, settle SettleFunc)
	Evict(path string)
}

type AudioSubsystem interface {
	Preload(path string, settle SettleFunc)
	Unload(path string)
}

type StructuredDataLoader interface {
	Preload(path string, settle SettleFunc)
	Unload(path string)
}

type GenericFileLoader interface {
	PreloadBinary(path string, settle SettleFunc)
	UnloadBinary(path string)
	PreloadText(path string, settle SettleFunc)
	UnloadText(path string)
}

// FontRegistrar must settle before Register returns.
type FontRegistrar interface {
	Register(family string, sources []assets.FontSource, settle SettleFunc)
	Unregister(family string)
}

// Subsystems groups the collaborators a DispatchTable is built from. Any of
// them may be nil, leaving the matching kinds without a handler.
type Subsystems struct {
	Images ImageCache
	Audio  AudioSubsystem
	Data   StructuredDataLoader
	Files  GenericFileLoader
	Fonts  FontRegistrar
}

// DispatchTable maps every kind to its handler.
type DispatchTable struct {
	handlers [assets.KindCount]Handler
}

func NewDispatchTable(subs Subsystems) *DispatchTable {
	t := &DispatchTable{}
	if subs.Images != nil {
		t.handlers[assets.KindImage] = imageHandler{subs.Images}
	}
	if subs.Audio != nil {
		t.handlers[assets.KindSound] = audioHandler{subs.Audio}
	}
	if subs.Data != nil {
		t.handlers[assets.KindXML] = dataHandler{subs.Data}
	}
	if subs.Files != nil {
		t.handlers[assets.KindBinary] = binaryHandler{subs.Files}
		t.handlers[assets.KindText] = textHandler{subs.Files}
	}
	if subs.Fonts != nil {
		t.handlers[assets.KindFont] = fontHandler{subs.Fonts}
	}
	return t
}

// Register installs or replaces the handler of a kind.
func (t *DispatchTable) Register(kind assets.Kind, h Handler) error {
	if kind <= assets.KindUnknown || int(kind) >= assets.KindCount {
		return fmt.Errorf("cannot register a handler for kind %s", kind)
	}
	if h == nil {
		return fmt.Errorf("nil handler for kind %s", kind)
	}
	t.handlers[kind] = h
	return nil
}

func (t *DispatchTable) Has(kind assets.Kind) bool {
	return t.lookup(kind) != nil
}

// Resolve classifies d and returns its handler, or a ConfigurationError when
// the kind is unknown or nothing handles it.
func (t *DispatchTable) Resolve(d assets.Descriptor) (assets.Kind, Handler, error) {
	if err := d.Validate(); err != nil {
		return assets.KindUnknown, nil, &core.ConfigurationError{Source: d.Key(), Kind: assets.KindUnknown.String(), Err: err}
	}
	kind, ext := assets.Classify(d)
	if kind == assets.KindUnknown {
		return kind, nil, &core.ConfigurationError{Source: d.Key(), Kind: ext, Err: core.ErrUnknownKind}
	}
	h := t.lookup(kind)
	if h == nil {
		return kind, nil, &core.ConfigurationError{Source: d.Key(), Kind: kind.String(), Err: core.ErrNoHandler}
	}
	return kind, h, nil
}

func (t *DispatchTable) Load(d assets.Descriptor, settle SettleFunc) error {
	_, h, err := t.Resolve(d)
	if err != nil {
		return err
	}
	return h.Load(d, settle)
}

func (t *DispatchTable) Unload(d assets.Descriptor) error {
	_, h, err := t.Resolve(d)
	if err != nil {
		return err
	}
	return h.Unload(d)
}

func (t *DispatchTable) lookup(kind assets.Kind) Handler {
	if kind < 0 || int(kind) >= assets.KindCount {
		return nil
	}
	return t.handlers[kind]
}

type imageHandler struct{ c ImageCache }

func (h imageHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.c.LoadAsync(d.Src, settle)
	return nil
}

func (h imageHandler) Unload(d assets.Descriptor) error {
	h.c.Evict(d.Src)
	return nil
}

type audioHandler struct{ a AudioSubsystem }

func (h audioHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.a.Preload(d.Src, settle)
	return nil
}

func (h audioHandler) Unload(d assets.Descriptor) error {
	h.a.Unload(d.Src)
	return nil
}

type dataHandler struct{ l StructuredDataLoader }

func (h dataHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.l.Preload(d.Src, settle)
	return nil
}

func (h dataHandler) Unload(d assets.Descriptor) error {
	h.l.Unload(d.Src)
	return nil
}

type binaryHandler struct{ f GenericFileLoader }

func (h binaryHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.f.PreloadBinary(d.Src, settle)
	return nil
}

func (h binaryHandler) Unload(d assets.Descriptor) error {
	h.f.UnloadBinary(d.Src)
	return nil
}

type textHandler struct{ f GenericFileLoader }

func (h textHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.f.PreloadText(d.Src, settle)
	return nil
}

func (h textHandler) Unload(d assets.Descriptor) error {
	h.f.UnloadText(d.Src)
	return nil
}

type fontHandler struct{ r FontRegistrar }

func (h fontHandler) Load(d assets.Descriptor, settle SettleFunc) error {
	h.r.Register(d.FontName, d.Sources, settle)
	return nil
}

func (h fontHandler) Unload(d assets.Descriptor) error {
	h.r.Unregister(d.FontName)
	return nil
}
