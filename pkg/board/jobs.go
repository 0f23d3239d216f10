package board

import (
	"cmp"
	"slices"

	"stockton/pkg/protocol"
)

// AllAgents is the job filter value that keeps every job.
const AllAgents = "all"

// JobCounts tallies the cron list.
type JobCounts struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Disabled int `json:"disabled"`
}

// CountJobs tallies enabled and disabled jobs.
func CountJobs(jobs []protocol.Job) JobCounts {
	c := JobCounts{Total: len(jobs)}
	for _, j := range jobs {
		if j.Enabled {
			c.Active++
		} else {
			c.Disabled++
		}
	}
	return c
}

// SortJobs orders jobs by name, then id, in place.
func SortJobs(jobs []protocol.Job) {
	slices.SortStableFunc(jobs, func(x, y protocol.Job) int {
		return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.ID, y.ID))
	})
}

// FilterJobs keeps jobs owned by agentID. AllAgents or "" keeps everything.
func FilterJobs(jobs []protocol.Job, agentID string) []protocol.Job {
	if agentID == AllAgents || agentID == "" {
		return jobs
	}
	var out []protocol.Job
	for _, j := range jobs {
		if j.Owner() == agentID {
			out = append(out, j)
		}
	}
	return out
}

// DefaultOwner picks the owner preselected in a new job form.
func DefaultOwner(agents []protocol.Agent, fallback string) string {
	for _, a := range agents {
		if a.ID != "" {
			return a.ID
		}
	}
	return fallback
}
