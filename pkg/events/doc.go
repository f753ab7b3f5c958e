// Package events is the in-process pub/sub broker that decouples the
// materializer's committed writes from the xDS engine's cache rebuild.
//
// The materializer never calls into pkg/xds directly: after a
// transaction commits it calls Broker.PublishRebuild, and the xDS
// server — holding its own long-lived subscription — rebuilds its
// resource cache from the repositories on receipt. Delivery is
// best-effort and non-blocking; a dropped event is harmless because the
// server also runs a periodic full rebuild (see pkg/xds/server) that
// converges on any state the event fan-out missed.
//
//	broker := events.NewBroker()
//	broker.Start()
//	defer broker.Stop()
//
//	sub := broker.Subscribe()
//	defer broker.Unsubscribe(sub)
//	go func() {
//		for ev := range sub {
//			if ev.Type == events.EventXDSRebuildRequested {
//				rebuildCache()
//			}
//		}
//	}()
package events
