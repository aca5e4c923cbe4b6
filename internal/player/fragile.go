package player

import (
	"sort"

	"indiflow/internal/models"
)

// FragileLocator summarizes how often a strategy failed to resolve its
// element across playbacks.
type FragileLocator struct {
	Strategy models.Strategy `json:"strategy"`
	Attempts int             `json:"attempts"`
	Failures int             `json:"failures"`
}

func (f FragileLocator) FailureRate() float64 {
	if f.Attempts == 0 {
		return 0
	}
	return float64(f.Failures) / float64(f.Attempts)
}

// DetectFragileLocators returns the strategies that failed in more than
// half of their attempts. Locators are tried in priority order, so every
// locator ranked ahead of the one that matched counts as a failure, and
// every locator of an element that was not found counts as a failure.
func DetectFragileLocators(runs ...[]models.StepResult) []FragileLocator {
	stats := map[models.Strategy]*FragileLocator{}
	tally := func(s models.Strategy, failed bool) {
		f, ok := stats[s]
		if !ok {
			f = &FragileLocator{Strategy: s}
			stats[s] = f
		}
		f.Attempts++
		if failed {
			f.Failures++
		}
	}

	for _, results := range runs {
		for _, res := range results {
			ea, ok := res.Step.Action.(models.ElementAction)
			if !ok {
				continue
			}
			locs := append([]models.Locator(nil), ea.Target().Locators...)
			models.SortLocators(locs)
			for _, loc := range locs {
				if !res.ElementFound {
					tally(loc.Strategy, true)
					continue
				}
				if loc.Strategy == res.MatchedStrategy && loc.Selector == res.MatchedSelector {
					tally(loc.Strategy, false)
					break
				}
				tally(loc.Strategy, true)
			}
		}
	}

	var out []FragileLocator
	for _, f := range stats {
		if f.Failures*2 > f.Attempts {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].FailureRate(), out[j].FailureRate()
		if ri != rj {
			return ri > rj
		}
		return out[i].Strategy < out[j].Strategy
	})
	return out
}
