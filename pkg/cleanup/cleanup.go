// Package cleanup holds shutdown jobs registered during startup and runs
// them when the process exits.
package cleanup

import "log/slog"

type Job struct {
	Name string
	F    func() error
}

var jobs []*Job

func Register(j *Job) {
	jobs = append(jobs, j)
}

// CleanUp runs registered jobs in reverse registration order, so resources
// are released after everything built on top of them.
func CleanUp() {
	for i := len(jobs) - 1; i >= 0; i-- {
		j := jobs[i]
		slog.Info("running cleanup job", slog.String("job", j.Name))
		if err := j.F(); err != nil {
			slog.Error("cleanup job failed", slog.String("job", j.Name), slog.String("error", err.Error()))
		}
	}
}
