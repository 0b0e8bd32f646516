package config

import "fmt"

// Defaults shared by the CLI and the config template.
const (
	DefaultViewHeight   = 20
	DefaultPanStep      = 0.1
	DefaultZoomFactor   = 1.25
	DefaultOptimizer    = "lm"
	DefaultHistoryDrv   = "sqlite"
	DefaultFetchTimeout = "60s"
	DefaultCacheTTL     = "10m"
	DefaultSchedule     = "@every 5m"
)

// Template returns a commented config file with every key disabled.
func Template() string {
	return fmt.Sprintf(`# tuifit configuration
# Uncomment a value to enable it. CLI flags override config values.

[view]
# height = %d             # Plot height in rows
# pan-step = %.2f         # Fraction of the view moved per pan key
# zoom-factor = %.2f      # View scale per zoom key
# color = true            # Colored plot output
# export-dir = ""         # PNG export directory (default under XDG data home)

[fit]
# optimizer = %q          # lm or bfgs
# max-iter = 0            # Optimizer evaluation limit (0 picks a default)
# ftol = 1.49012e-8       # Relative cost tolerance
# xtol = 1.49012e-8       # Relative step tolerance
# gtol = 0.0              # Gradient tolerance

[history]
# driver = %q             # sqlite or postgres
# dsn = ""                # File path for sqlite, connection string for postgres
# disabled = false        # Do not record fits

[fetch]
# timeout = %q            # HTTP timeout for remote sources
# redis-addr = ""         # Cache remote sources in redis, e.g. "localhost:6379"
# redis-password = ""
# redis-db = 0
# cache-ttl = %q          # How long cached sources stay valid

[watch]
# schedule = %q           # Cron spec for tuifit watch
`,
		DefaultViewHeight,
		DefaultPanStep,
		DefaultZoomFactor,
		DefaultOptimizer,
		DefaultHistoryDrv,
		DefaultFetchTimeout,
		DefaultCacheTTL,
		DefaultSchedule,
	)
}
