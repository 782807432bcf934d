package drift

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is derived from a delta, never edited in place. Re-evaluating the
// same delta always yields the same alerts.
type Alert struct {
	Severity           Severity
	Category           string
	Message            string
	RelatedSnapshotIDs []string
}

// Thresholds configures alert evaluation.
type Thresholds struct {
	// GrowthPct fires a growth warning when the size delta percentage
	// strictly exceeds it.
	GrowthPct float64

	// AddedFiles fires a mass-addition info alert when more than this
	// many paths were added. Zero disables the rule.
	AddedFiles int

	// AddedBytes fires a mass-addition info alert when added paths total
	// more than this many bytes. Zero disables the rule.
	AddedBytes int64
}

// DefaultThresholds returns the stock rule configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GrowthPct:  20,
		AddedFiles: 1000,
		AddedBytes: 1 << 30, // 1 GiB
	}
}

// Evaluate applies every rule to the delta. Rules are independent and all
// applicable rules fire; a single delta may yield several alerts. Negative
// or zero size deltas yield none.
func Evaluate(delta *ChangeDelta, th Thresholds) []Alert {
	if delta == nil || delta.SizeDeltaBytes <= 0 {
		return nil
	}

	related := []string{delta.FromSnapshotID, delta.ToSnapshotID}
	var alerts []Alert

	if th.GrowthPct > 0 && delta.SizeDeltaPct > th.GrowthPct {
		alerts = append(alerts, Alert{
			Severity: SeverityWarning,
			Category: "growth",
			Message: fmt.Sprintf("project grew %.1f%% (+%s)",
				delta.SizeDeltaPct, humanize.IBytes(uint64(delta.SizeDeltaBytes))),
			RelatedSnapshotIDs: related,
		})
	}

	if th.GrowthPct > 0 && delta.SizeDeltaPct > 2*th.GrowthPct {
		alerts = append(alerts, Alert{
			Severity: SeverityCritical,
			Category: "surge",
			Message: fmt.Sprintf("project grew %.1f%%, more than double the growth threshold",
				delta.SizeDeltaPct),
			RelatedSnapshotIDs: related,
		})
	}

	if th.AddedFiles > 0 && len(delta.AddedPaths) > th.AddedFiles {
		alerts = append(alerts, Alert{
			Severity: SeverityInfo,
			Category: "mass-addition",
			Message: fmt.Sprintf("%d new paths since last snapshot",
				len(delta.AddedPaths)),
			RelatedSnapshotIDs: related,
		})
	}

	if th.AddedBytes > 0 && delta.AddedBytes > th.AddedBytes {
		alerts = append(alerts, Alert{
			Severity: SeverityInfo,
			Category: "mass-addition",
			Message: fmt.Sprintf("%s of new content since last snapshot",
				humanize.IBytes(uint64(delta.AddedBytes))),
			RelatedSnapshotIDs: related,
		})
	}

	return alerts
}
