package loaders

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spaghettifunk/preloader/engine/core"
	"github.com/spaghettifunk/preloader/engine/systems"
)

var ErrUnknownAudioFormat = errors.New("unrecognised audio container")

// Clip is an audio file kept in memory, ready for a mixer to decode.
type Clip struct {
	Format string
	Data   []byte
}

// AudioBank preloads sound files into memory. It checks the container
// signature but leaves decoding to whoever plays the clip.
type AudioBank struct {
	*cache[*Clip]
}

var _ systems.AudioSubsystem = (*AudioBank)(nil)

func NewAudioBank(base string, jobs *systems.JobSystem) *AudioBank {
	return &AudioBank{cache: newCache[*Clip]("audio", base, jobs)}
}

func (ab *AudioBank) Preload(path string, settle systems.SettleFunc) {
	ab.load(path, readClip, settle)
}

func (ab *AudioBank) Unload(path string) {
	if ab.evict(path) {
		core.LogDebug("audio: unloaded %s", path)
	}
}

// Clip returns the preloaded clip for path.
func (ab *AudioBank) Clip(path string) (*Clip, bool) {
	return ab.lookup(path)
}

func readClip(full string) (*Clip, error) {
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	format, err := sniffAudio(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", full, err)
	}
	return &Clip{Format: format, Data: data}, nil
}

func sniffAudio(data []byte) (string, error) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav", nil
	case len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS")):
		return "ogg", nil
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("FORM")) &&
		(bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC"))):
		return "aiff", nil
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return "mp4", nil
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")):
		return "mp3", nil
	// MPEG audio frame sync
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3", nil
	}
	return "", ErrUnknownAudioFormat
}
