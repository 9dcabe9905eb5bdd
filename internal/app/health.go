package app

import "strings"

// healthValues flattens a finished run into alert inputs keyed
// "<job>_<name>", e.g. price_update_failure_ratio.
func healthValues(rep JobReport) map[string]float64 {
	prefix := rep.Job + "_"
	v := map[string]float64{
		prefix + "error":            0,
		prefix + "failed":           float64(rep.Failed),
		prefix + "duration_seconds": rep.Duration.Seconds(),
	}
	if rep.Error != "" {
		v[prefix+"error"] = 1
	}

	switch rep.Job {
	case JobPriceUpdate:
		if rep.Reason != "" {
			// gated ticks say nothing about feed health
			return map[string]float64{prefix + "error": v[prefix+"error"]}
		}
		v[prefix+"symbols"] = float64(rep.Symbols)
		v[prefix+"quotes"] = float64(rep.Quotes)
		v[prefix+"failure_ratio"] = 0
		if rep.Symbols > 0 {
			v[prefix+"failure_ratio"] = float64(rep.Failed) / float64(rep.Symbols)
		}
	case JobAnnounce:
		v[prefix+"announced"] = float64(rep.Announced)
	case JobExpirySweep:
		v[prefix+"expired"] = float64(rep.Expired)
	case JobDailySummary:
		v[prefix+"archived"] = 0
		if strings.TrimSpace(rep.Archived) != "" {
			v[prefix+"archived"] = 1
		}
	}
	return v
}
