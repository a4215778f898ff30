package cron

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Job is one unit of scheduled maintenance. Run must be safe to repeat: a cycle that dies
// halfway is simply run again on the next tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry is the ordered set of jobs a cycle runs. Names are unique.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	seen := make(map[string]struct{}, len(jobs))
	r := &Registry{jobs: make([]Job, 0, len(jobs))}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		name := job.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("cron job %T has no name", job)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("cron job %q registered twice", name)
		}
		seen[name] = struct{}{}
		r.jobs = append(r.jobs, job)
	}
	return r, nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Only narrows the registry to the named jobs, keeping registration order. Unknown names
// are an error so a typo in -job never silently runs nothing.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[strings.TrimSpace(name)] = false
	}
	picked := &Registry{}
	for _, job := range r.jobs {
		if _, ok := want[job.Name()]; ok {
			want[job.Name()] = true
			picked.jobs = append(picked.jobs, job)
		}
	}
	for name, found := range want {
		if !found {
			return nil, fmt.Errorf("unknown cron job %q", name)
		}
	}
	return picked, nil
}
