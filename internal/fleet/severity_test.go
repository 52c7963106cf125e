package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyWorstRatioWins(t *testing.T) {
	limits := ResourceLimits{CPULimit: 100, MemoryLimit: 1000, NetworkLimit: 50}
	th := DefaultThresholds()

	cases := []struct {
		name  string
		usage ResourceSnapshot
		want  Severity
	}{
		{"all low", ResourceSnapshot{CPU: 40, Memory: 100, NetworkRx: 5}, SeverityOK},
		{"cpu at warn", ResourceSnapshot{CPU: 65}, SeverityWarn},
		{"memory critical trumps low cpu", ResourceSnapshot{CPU: 10, Memory: 850}, SeverityCritical},
		{"exactly at warn boundary", ResourceSnapshot{CPU: 60}, SeverityWarn},
		{"exactly at critical boundary", ResourceSnapshot{CPU: 80}, SeverityCritical},
		{"just below warn", ResourceSnapshot{CPU: 59.9}, SeverityOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.usage, limits, th))
		})
	}
}

func TestClassifyNetworkSumsBothDirections(t *testing.T) {
	limits := ResourceLimits{NetworkLimit: 100}
	usage := ResourceSnapshot{NetworkRx: 45, NetworkTx: 40}
	assert.Equal(t, SeverityCritical, Classify(usage, limits, DefaultThresholds()))
}

func TestClassifyUnconstrainedResourceIgnored(t *testing.T) {
	// Zero and negative limits mean no limit, no matter how high usage is.
	limits := ResourceLimits{CPULimit: 0, MemoryLimit: -1}
	usage := ResourceSnapshot{CPU: 9999, Memory: 9999}
	assert.Equal(t, SeverityOK, Classify(usage, limits, DefaultThresholds()))
}

func TestClassifySnapshotCarriedLimitsEscalate(t *testing.T) {
	// Boxes have no limits of their own; the snapshot is the only limit
	// source, and heavy usage against it must escalate.
	snap := ResourceSnapshot{
		CPU: 1000, Memory: 100000, NetworkRx: 9000, NetworkTx: 9000,
		ResourceLimits: ResourceLimits{CPULimit: 100, MemoryLimit: 2048, NetworkLimit: 100},
	}
	assert.Equal(t, SeverityCritical, Classify(snap, snap.ResourceLimits, DefaultThresholds()))
}

func TestClassifyInvalidThresholdsFallBack(t *testing.T) {
	limits := ResourceLimits{CPULimit: 100}
	usage := ResourceSnapshot{CPU: 70}
	assert.Equal(t, SeverityWarn, Classify(usage, limits, Thresholds{}))
	assert.Equal(t, SeverityWarn, Classify(usage, limits, Thresholds{Warn: -1, Critical: 0.8}))
}
