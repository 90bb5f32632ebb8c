package services

import (
	"context"
	"sync"

	"github.com/yungbote/esgledger-backend/internal/clients/specservice"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
	"github.com/yungbote/esgledger-backend/internal/spec"
)

// SpecRegistry hands out parsed framework specifications. Specifications are
// immutable for the lifetime of the process, so each one is fetched and parsed
// at most once.
type SpecRegistry interface {
	Get(ctx context.Context, framework string) (*spec.Spec, error)
	IsAssembledFramework(ctx context.Context, framework string) (bool, error)
}

type specRegistry struct {
	log    *logger.Logger
	client specservice.Client

	mu     sync.RWMutex
	specs  map[string]*spec.Spec
	listed map[string]bool
}

func NewSpecRegistry(client specservice.Client, baseLog *logger.Logger) SpecRegistry {
	return &specRegistry{
		log:    baseLog.With("service", "SpecRegistry"),
		client: client,
		specs:  map[string]*spec.Spec{},
	}
}

func (r *specRegistry) Get(ctx context.Context, framework string) (*spec.Spec, error) {
	r.mu.RLock()
	cached, ok := r.specs[framework]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	schema, err := r.client.GetFrameworkSpecification(ctx, framework)
	if err != nil {
		return nil, err
	}
	parsed, err := spec.Parse(schema)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// another goroutine may have raced us here; keep the first parse
	if existing, ok := r.specs[framework]; ok {
		parsed = existing
	} else {
		r.specs[framework] = parsed
	}
	r.mu.Unlock()
	return parsed, nil
}

func (r *specRegistry) IsAssembledFramework(ctx context.Context, framework string) (bool, error) {
	r.mu.RLock()
	listed := r.listed
	r.mu.RUnlock()

	if listed == nil {
		names, err := r.client.ListFrameworkSpecifications(ctx)
		if err != nil {
			return false, err
		}
		listed = map[string]bool{}
		for _, name := range names {
			listed[name] = true
		}
		r.mu.Lock()
		r.listed = listed
		r.mu.Unlock()
	}
	return listed[framework], nil
}
