/*
Package config loads pipeline settings.

# Overview

Config wraps a map[string]any and provides typed accessors that return the
supplied default when a key is missing or has the wrong type. Settings is the
typed view the pipeline consumes.

# Loading

	s, err := config.Load("eventpipe.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	if err := s.Validate(); err != nil {
	    log.Fatal(err)
	}

Load applies, in order: Defaults, the YAML or JSON file (keys in
snake_case, e.g. flush_interval: 8s), then EVENTPIPE_* environment
variables such as EVENTPIPE_GAME_KEY and EVENTPIPE_FLUSH_INTERVAL.
Slice variables are comma separated.

# Defaults

  - flush interval 8s
  - batch size 500
  - store ceiling 10 MB
  - error report cap 10 per kind
  - gzip on, error reporting on
*/
package config
