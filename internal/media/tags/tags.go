package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/go-audio/wav"
	goflac "github.com/go-flac/go-flac"
	"github.com/go-flac/flacvorbis"
	"github.com/mewkiz/flac"

	"sieve/internal/media/metadata"
	"sieve/internal/services"
)

const component = "tags"

// ErrUnsupported marks a file format no native reader handles.
var ErrUnsupported = errors.New("unsupported format")

// Native reads tags and stream parameters without external tools.
type Native struct{}

// Lookup dispatches on the file extension.
func (Native) Lookup(_ context.Context, path string) (metadata.Info, error) {
	info, err := Read(path)
	if err != nil {
		return metadata.Info{}, err
	}
	if stat, statErr := os.Stat(path); statErr == nil {
		info.Size = stat.Size()
	}
	return info, nil
}

// Read extracts what the format-specific reader knows about path.
func Read(path string) (metadata.Info, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return readMP3(path)
	case ".flac":
		return readFLAC(path)
	case ".wav":
		return readWAV(path)
	default:
		return metadata.Info{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func readMP3(path string) (metadata.Info, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return metadata.Info{}, services.Wrap(services.ErrValidation, component, "id3v2", path, err)
	}
	defer tag.Close()
	return metadata.Info{
		Title:  strings.TrimSpace(tag.Title()),
		Artist: strings.TrimSpace(tag.Artist()),
		Codec:  "MP3 (MPEG audio layer 3)",
	}, nil
}

func readFLAC(path string) (metadata.Info, error) {
	info := metadata.Info{Codec: "FLAC (Free Lossless Audio Codec)"}

	stream, err := flac.Open(path)
	if err != nil {
		return metadata.Info{}, services.Wrap(services.ErrValidation, component, "flac stream", path, err)
	}
	if si := stream.Info; si != nil {
		info.SampleRate = int(si.SampleRate)
		if si.SampleRate > 0 {
			info.Duration = float64(si.NSamples) / float64(si.SampleRate)
			info.BitRate = int64(si.SampleRate) * int64(si.BitsPerSample) * int64(si.NChannels)
		}
	}
	_ = stream.Close()

	file, err := goflac.ParseFile(path)
	if err != nil {
		return info, nil
	}
	for _, block := range file.Meta {
		if block.Type != goflac.VorbisComment {
			continue
		}
		comment, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			break
		}
		info.Title = firstComment(comment, flacvorbis.FIELD_TITLE)
		info.Artist = firstComment(comment, flacvorbis.FIELD_ARTIST)
		break
	}
	return info, nil
}

func firstComment(comment *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := comment.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func readWAV(path string) (metadata.Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return metadata.Info{}, services.Wrap(services.ErrNotFound, component, "wav", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return metadata.Info{}, services.Wrap(services.ErrValidation, component, "wav", "not a valid wav file", nil)
	}
	info := metadata.Info{
		Codec:      "PCM (WAV)",
		SampleRate: int(decoder.SampleRate),
		BitRate:    int64(decoder.SampleRate) * int64(decoder.BitDepth) * int64(decoder.NumChans),
	}
	if duration, err := decoder.Duration(); err == nil {
		info.Duration = duration.Round(time.Millisecond).Seconds()
	}
	return info, nil
}
