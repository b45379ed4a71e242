// Package discovery lists the tenants (GCP projects) reachable under the
// delegated identity. Tenants are discovered transiently on every run and
// never persisted.
package discovery

import (
	"context"

	"go.uber.org/zap"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"

	"cloudscope/internal/broker"
)

type Service struct {
	log *zap.SugaredLogger
	crm *cloudresourcemanager.Service
}

// NewService builds a discovery client authenticated as the delegated
// caller. extra options are for tests (endpoint overrides).
func NewService(ctx context.Context, log *zap.SugaredLogger, caller *broker.Caller, extra ...option.ClientOption) (*Service, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(caller)}, extra...)
	crm, err := cloudresourcemanager.NewService(ctx, opts...)
	if err != nil {
		return nil, classify(err)
	}
	return &Service{log: log, crm: crm}, nil
}

// ListTenants returns the IDs of every project the delegated identity can
// see, in the order the resource manager returns them, following pagination
// to exhaustion. An empty result is a valid terminal state, not an error.
func (s *Service) ListTenants(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.crm.Projects.List().Pages(ctx, func(resp *cloudresourcemanager.ListProjectsResponse) error {
		for _, p := range resp.Projects {
			ids = append(ids, p.ProjectId)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	s.log.Infow("tenants discovered", "count", len(ids))
	return ids, nil
}
