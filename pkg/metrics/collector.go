package metrics

import (
	"context"
	"time"

	"github.com/flowplane/flowplane/pkg/storage"
)

// SessionCounter reports how many ADS streams are currently open. Satisfied
// by *pkg/xds/session.Table without this package importing it directly,
// keeping pkg/metrics at the bottom of the dependency graph.
type SessionCounter interface {
	Len() int
}

// Collector polls storage and the xDS session table on an interval and
// republishes the results as gauges. Counters and histograms for API
// requests and xDS rebuilds are updated inline by their own call sites
// instead, since a poll loop cannot observe a duration it did not witness.
// The materializer and secret-resolution metrics are registered, but no
// code in this repository records them.
type Collector struct {
	store    storage.Transactor
	sessions SessionCounter
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. sessions may be nil if the
// caller has not started the xDS server yet; XDSSessionsTotal simply stays
// at zero until it is wired up.
func NewCollector(store storage.Transactor, sessions SessionCounter) *Collector {
	return &Collector{
		store:    store,
		sessions: sessions,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSessionMetrics()
	c.collectResourceMetrics()
}

func (c *Collector) collectSessionMetrics() {
	if c.sessions == nil {
		return
	}
	XDSSessionsTotal.Set(float64(c.sessions.Len()))
}

func (c *Collector) collectResourceMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = c.store.View(ctx, func(tx storage.Tx) error {
		if clusters, err := tx.Clusters().ListAll(0, 0); err == nil {
			ClustersTotal.Set(float64(len(clusters)))
		}
		if listeners, err := tx.Listeners().ListAll(0, 0); err == nil {
			ListenersTotal.Set(float64(len(listeners)))
		}
		if routes, err := tx.Routes().ListAll(0, 0); err == nil {
			RouteConfigurationsTotal.Set(float64(len(routes)))
		}
		if secrets, err := tx.Secrets().ListAll(0, 0); err == nil {
			SecretsTotal.Set(float64(len(secrets)))
		}
		if defs, err := tx.ApiDefinitions().ListAll(0, 0); err == nil {
			ApiDefinitionsTotal.Set(float64(len(defs)))
		}

		orgs, err := tx.Orgs().List()
		if err != nil {
			return nil
		}
		teamCount := 0
		for _, org := range orgs {
			teams, err := tx.Teams().ListByOrg(org.ID)
			if err != nil {
				continue
			}
			teamCount += len(teams)
		}
		TeamsTotal.Set(float64(teamCount))
		return nil
	})
}
