package harness

import (
	"encoding/json"
	"sort"
)

// Check names used as Report keys.
const (
	CheckMaxAbsError = "max_abs_error"
	CheckEnergyDrift = "energy_drift"
	CheckPeriod      = "period"
	CheckReturn      = "return"
)

// Check is one policy verdict with the quantity it was decided on.
type Check struct {
	Name      string  `json:"name"`
	Measured  float64 `json:"measured"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Note      string  `json:"note,omitempty"`
}

// Report is built once by Validate and is read-only afterwards.
type Report struct {
	checks map[string]Check
}

func newReport() *Report {
	return &Report{checks: make(map[string]Check)}
}

func (r *Report) add(c Check) {
	r.checks[c.Name] = c
}

func (r *Report) Get(name string) (Check, bool) {
	c, ok := r.checks[name]
	return c, ok
}

// Checks returns every check sorted by name.
func (r *Report) Checks() []Check {
	out := make([]Check, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Passed is true when every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

func (r *Report) Len() int { return len(r.checks) }

func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Passed bool    `json:"passed"`
		Checks []Check `json:"checks"`
	}{r.Passed(), r.Checks()})
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var raw struct {
		Checks []Check `json:"checks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.checks = make(map[string]Check, len(raw.Checks))
	for _, c := range raw.Checks {
		r.checks[c.Name] = c
	}
	return nil
}
