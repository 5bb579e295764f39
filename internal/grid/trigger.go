package grid

// TriggerConfig holds the infinite-scroll distances.
type TriggerConfig struct {
	// LoadThreshold fires a load once the distance from the bottom drops below it.
	LoadThreshold int
	// RearmThreshold must be exceeded before the trigger can fire again.
	RearmThreshold int
}

// DefaultTriggerConfig returns the 300/500 thresholds.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{LoadThreshold: 300, RearmThreshold: 500}
}

// ScrollTrigger decides when to ask for the next page. It fires from either
// the sentinel becoming visible or the bottom distance threshold, and stays
// disarmed after a load until the user scrolls back past RearmThreshold.
type ScrollTrigger struct {
	cfg   TriggerConfig
	armed bool
}

// NewScrollTrigger returns an armed trigger.
func NewScrollTrigger(cfg TriggerConfig) *ScrollTrigger {
	if cfg.LoadThreshold < 0 {
		cfg.LoadThreshold = 0
	}
	if cfg.RearmThreshold < cfg.LoadThreshold {
		cfg.RearmThreshold = cfg.LoadThreshold
	}
	return &ScrollTrigger{cfg: cfg, armed: true}
}

// Armed reports whether the trigger may fire.
func (t *ScrollTrigger) Armed() bool {
	return t.armed
}

// Observe feeds the current distance from the bottom and sentinel visibility
// and reports whether a load should be attempted. It only re-arms here; the
// caller disarms with Fired once a request was actually issued.
func (t *ScrollTrigger) Observe(distanceFromBottom int, sentinelVisible bool) bool {
	if !t.armed && distanceFromBottom > t.cfg.RearmThreshold {
		t.armed = true
	}
	if !t.armed {
		return false
	}
	return sentinelVisible || distanceFromBottom < t.cfg.LoadThreshold
}

// Fired disarms the trigger after a page request went out.
func (t *ScrollTrigger) Fired() {
	t.armed = false
}

// Reset re-arms the trigger, e.g. after switching data source.
func (t *ScrollTrigger) Reset() {
	t.armed = true
}
