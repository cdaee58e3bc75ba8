// Package ffprobe runs ffprobe and decodes the format, stream, and tag fields
// the review page shows for each candidate file.
package ffprobe
