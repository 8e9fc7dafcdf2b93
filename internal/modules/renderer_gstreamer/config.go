// Package renderergstreamer plays streams through a gst-launch style pipeline.
package renderergstreamer

import "time"

// DefaultPipeline decodes any URI to the default audio sink.
const DefaultPipeline = "playbin uri={url}"

// Config describes the pipeline template. {url}, {device}, {start_ms} and
// {volume} are substituted before each stream starts.
type Config struct {
	Pipeline  string
	Device    string
	Crossfade time.Duration
}

func (c Config) withDefaults() Config {
	if c.Pipeline == "" {
		c.Pipeline = DefaultPipeline
	}
	return c
}
