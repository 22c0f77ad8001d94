package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath   string
	FeedsDir string

	// Server and workers
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Outbound HTTP
	UserAgent   string
	CABundle    string
	HTTPTimeout time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
