package advisory

import "context"

// StaticService is a Service backed by an in-memory fixture, for tests.
type StaticService struct {
	ByPackage map[string][]Advisory
	Errors    map[string]error
}

// Query implements Service.
func (s *StaticService) Query(_ context.Context, _ string, packageName string) ([]Advisory, error) {
	if err, ok := s.Errors[packageName]; ok {
		return nil, err
	}
	return s.ByPackage[packageName], nil
}
