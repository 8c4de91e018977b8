package ledger

import "sort"

// Summarize aggregates attempts into totals and per-course and
// per-installation groups, each sorted by key.
func Summarize(attempts []Attempt) Summary {
	var (
		total   acc
		courses = map[string]*acc{}
		insts   = map[string]*acc{}
	)
	for _, a := range attempts {
		total.add(a)
		group(courses, a.CourseID).add(a)
		group(insts, a.InstallationID).add(a)
	}
	return Summary{
		Total:          total.stats(),
		ByCourse:       flatten(courses),
		ByInstallation: flatten(insts),
	}
}

type acc struct {
	n, approved int
	sum         float64
}

func (c *acc) add(a Attempt) {
	c.n++
	c.sum += a.Score
	if a.Approved {
		c.approved++
	}
}

func (c *acc) stats() Stats {
	s := Stats{Attempts: c.n, Approved: c.approved, Failed: c.n - c.approved}
	if c.n > 0 {
		s.AverageScore = c.sum / float64(c.n)
	}
	return s
}

func group(m map[string]*acc, k string) *acc {
	c, ok := m[k]
	if !ok {
		c = &acc{}
		m[k] = c
	}
	return c
}

func flatten(m map[string]*acc) []GroupStats {
	out := make([]GroupStats, 0, len(m))
	for k, c := range m {
		out = append(out, GroupStats{Key: k, Stats: c.stats()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
