package dedup

// Config holds the scheduler-wide naming settings: the prefix stamped
// onto every job name, the group used when a request names none, and a
// label that only appears in diagnostics. Each Scheduler owns its Config
// explicitly, so differently configured schedulers can coexist.
//
// Config is not synchronized. Configure it once during startup, before
// the first scheduling call; reconfiguring concurrently with in-flight
// calls is undefined.
type Config struct {
	namePrefix      string
	defaultGroup    string
	diagnosticLabel string
}

const (
	DefaultNamePrefix = "queue_"
	DefaultGroup      = "queue_default"
)

func NewConfig() *Config {
	return &Config{
		namePrefix:   DefaultNamePrefix,
		defaultGroup: DefaultGroup,
	}
}

// Configure canonicalizes and stores all three fields, overwriting the
// previous configuration unconditionally.
func (c *Config) Configure(namePrefix, defaultGroup, diagnosticLabel string) {
	c.namePrefix = sanitizeKey(namePrefix)
	c.defaultGroup = sanitizeKey(defaultGroup)
	c.diagnosticLabel = diagnosticLabel
}

func (c *Config) NamePrefix() string {
	return c.namePrefix
}

func (c *Config) DefaultGroup() string {
	return c.defaultGroup
}

func (c *Config) DiagnosticLabel() string {
	return c.diagnosticLabel
}
