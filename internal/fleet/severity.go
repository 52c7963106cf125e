package fleet

// Severity classifies resource usage against configured limits.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarn     Severity = "warn"
	SeverityCritical Severity = "critical"
)

// Thresholds are the usage/limit ratios at which severity escalates.
// One pair applies to every display surface; box cards and viewer detail
// banners must never diverge on what "critical" means.
type Thresholds struct {
	Warn     float64
	Critical float64
}

// DefaultThresholds matches the historical 60%/80% behavior.
func DefaultThresholds() Thresholds {
	return Thresholds{Warn: 0.6, Critical: 0.8}
}

// Classify derives severity from a usage snapshot and limits. Derivation
// happens at read time on every call; nothing is cached, so an edited
// limit changes the classification on the next read with no
// invalidation step.
//
// Resources with a non-positive limit are unconstrained and ignored.
// Network usage is rx+tx against the single network limit.
func Classify(usage ResourceSnapshot, limits ResourceLimits, t Thresholds) Severity {
	if t.Warn <= 0 || t.Critical <= 0 {
		t = DefaultThresholds()
	}

	ratios := []float64{
		ratio(usage.CPU, limits.CPULimit),
		ratio(usage.Memory, limits.MemoryLimit),
		ratio(usage.NetworkRx+usage.NetworkTx, limits.NetworkLimit),
	}

	worst := 0.0
	for _, r := range ratios {
		if r > worst {
			worst = r
		}
	}
	switch {
	case worst >= t.Critical:
		return SeverityCritical
	case worst >= t.Warn:
		return SeverityWarn
	default:
		return SeverityOK
	}
}

func ratio(usage, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return usage / limit
}
