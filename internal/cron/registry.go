package cron

import (
	"context"
	"fmt"
)

// Job is one unit of periodic work. Name doubles as the metrics label and
// must be unique within a Registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered set of jobs a cycle runs.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	seen := make(map[string]struct{}, len(jobs))
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			return nil, fmt.Errorf("cron job %d is nil", len(registry.jobs))
		}
		name := job.Name()
		if name == "" {
			return nil, fmt.Errorf("cron job %d has no name", len(registry.jobs))
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("cron job %q registered twice", name)
		}
		seen[name] = struct{}{}
		registry.jobs = append(registry.jobs, job)
	}
	return registry, nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	if r == nil {
		return nil
	}
	return append([]Job(nil), r.jobs...)
}
