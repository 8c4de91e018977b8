package assessment

import (
	"github.com/robfig/cron/v3"
)

// StartJanitor schedules Sweep on the given cron spec, e.g. "@every 1m".
// The caller stops the returned scheduler on shutdown.
func (s *Service) StartJanitor(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		s.Sweep(s.opts.Now())
	}); err != nil {
		return nil, err
	}
	c.Start()
	s.log.Info("session janitor started", "schedule", spec, "retention", s.opts.Retention)
	return c, nil
}
