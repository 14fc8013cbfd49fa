package assets

import "strings"

type Kind int

/** @brief Resource kinds the preloader knows how to dispatch. */
const (
	/** @brief Extension not found in any kind's table. */
	KindUnknown Kind = iota
	/** @brief png, jpg, bmp, jpeg, gif */
	KindImage
	/** @brief mp3, ogg, wav, mp4, m4a, aif, aiff */
	KindSound
	/** @brief plist, xml, fnt, tmx, tsx */
	KindXML
	/** @brief ccbi */
	KindBinary
	/** @brief txt, vsh, fsh, json, ExportJson */
	KindText
	/** @brief Declared by an explicit font family name, never by extension. */
	KindFont

	kindCount
)

// KindCount is the number of kinds, KindUnknown included. Tables indexed by
// Kind are sized with it.
const KindCount = int(kindCount)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindImage:   "image",
	KindSound:   "sound",
	KindXML:     "xml",
	KindBinary:  "binary",
	KindText:    "text",
	KindFont:    "font",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Extensions are matched verbatim: "PNG" is not an image.
var extensions = map[Kind][]string{
	KindImage:  {"png", "jpg", "bmp", "jpeg", "gif"},
	KindSound:  {"mp3", "ogg", "wav", "mp4", "m4a", "aif", "aiff"},
	KindXML:    {"plist", "xml", "fnt", "tmx", "tsx"},
	KindBinary: {"ccbi"},
	KindText:   {"txt", "vsh", "fsh", "json", "ExportJson"},
}

// lookup order is fixed so classification never depends on map iteration
var kindOrder = []Kind{KindImage, KindSound, KindXML, KindBinary, KindText}

var extensionIndex = func() map[string]Kind {
	idx := make(map[string]Kind)
	for _, k := range kindOrder {
		for _, ext := range extensions[k] {
			if _, ok := idx[ext]; !ok {
				idx[ext] = k
			}
		}
	}
	return idx
}()

// Extensions returns a copy of the extension list for a kind.
func Extensions(k Kind) []string {
	return append([]string(nil), extensions[k]...)
}

// Classify maps a descriptor to its kind. The second value is the raw
// extension used for the lookup; for KindUnknown it is what error messages
// should report. Fonts return an empty extension.
func Classify(d Descriptor) (Kind, string) {
	if d.FontName != "" {
		return KindFont, ""
	}
	ext := Extension(d.Src)
	if k, ok := extensionIndex[ext]; ok {
		return k, ext
	}
	return KindUnknown, ext
}

// Extension returns what follows the last '.' of src, without a trailing
// query string. A '?' right after the dot is kept, so "file.?x" yields "?x".
// A src without a dot yields the whole string.
func Extension(src string) string {
	ext := src[strings.LastIndex(src, ".")+1:]
	if i := strings.Index(ext, "?"); i > 0 {
		ext = ext[:i]
	}
	return ext
}

// StripQuery removes a query string from a source locator so it can be
// resolved on disk.
func StripQuery(src string) string {
	if i := strings.Index(src, "?"); i >= 0 {
		return src[:i]
	}
	return src
}
