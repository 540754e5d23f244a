package config

import "time"

// PublishConfig tunes the publishing pipeline.
type PublishConfig struct {
	Concurrency int `yaml:"concurrency,omitempty"` // site rebuild fan-out
	QueueSize   int `yaml:"queue_size,omitempty"`  // max queued publish jobs
	Workers     int `yaml:"workers,omitempty"`     // publish queue workers
}

// SchedulerConfig controls the publish/expiry sweep and the optional
// nightly full rebuild.
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	SweepInterval  string `yaml:"sweep_interval,omitempty"`
	NightlyRebuild bool   `yaml:"nightly_rebuild,omitempty"`
	RebuildAt      string `yaml:"rebuild_at,omitempty"` // HH:MM, defaults to 03:30
}

// Interval parses the sweep interval, falling back to one minute.
func (sc SchedulerConfig) Interval() time.Duration {
	return parseDurationOr(sc.SweepInterval, time.Minute)
}
