// Package tags reads titles, artists, and stream parameters straight from
// MP3, FLAC, and WAV files when ffprobe is unavailable or leaves gaps. It
// also derives a display title from the filename as a last resort.
package tags
