// Package server implements the Aggregated Discovery Service: the gRPC
// bidirectional stream Envoy proxies open to pull Cluster, Listener,
// RouteConfiguration, ClusterLoadAssignment, and Secret resources.
// Grounded in the receive-goroutine-plus-channel shape of ADS handlers
// across the retrieval pack (istio pilot's DiscoveryServer.receive/
// StreamAggregatedResources), adapted to flowplane's own model.Cache
// instead of go-control-plane's SnapshotCache, since that cache has no
// notion of a per-connection scope filter.
package server

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/flowplane/flowplane/pkg/events"
	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/metrics"
	"github.com/flowplane/flowplane/pkg/types"
	"github.com/flowplane/flowplane/pkg/xds/model"
	"github.com/flowplane/flowplane/pkg/xds/resources"
	"github.com/flowplane/flowplane/pkg/xds/scope"
	"github.com/flowplane/flowplane/pkg/xds/session"
)

// pollInterval bounds how long a session can wait to learn about a
// rebuild it wasn't directly signaled for (a missed or coalesced
// events.Broker publish). Short enough that it never accounts for
// perceptible propagation delay, long enough not to burn CPU spinning on
// an idle cache.
const pollInterval = 200 * time.Millisecond

var streamCounter int64

// Server implements discoveryv3.AggregatedDiscoveryServiceServer.
type Server struct {
	discoveryv3.UnimplementedAggregatedDiscoveryServiceServer

	cache    *model.Cache
	sessions *session.Table
	broker   *events.Broker

	rebuildInterval time.Duration
	idleTTL         time.Duration
}

// New constructs the ADS server. cache must already be reachable from a
// completed or in-flight Rebuild; sessions is shared with pkg/metrics'
// Collector so the session-count gauge reflects the same table this
// server reads and writes.
func New(cache *model.Cache, sessions *session.Table, broker *events.Broker, rebuildInterval, idleTTL time.Duration) *Server {
	return &Server{
		cache:           cache,
		sessions:        sessions,
		broker:          broker,
		rebuildInterval: rebuildInterval,
		idleTTL:         idleTTL,
	}
}

// RunRebuildLoop rebuilds the cache once immediately, then again on every
// materializer-published event and on a fixed ticker as a backstop against
// a dropped event, until ctx is canceled. It also runs the session table's
// idle-TTL sweep on the same ticker. Modeled on a reconcile
// loop (stdlib time.Ticker over a select, no third-party scheduler).
func (s *Server) RunRebuildLoop(ctx context.Context) {
	logger := log.WithComponent("xds-server")

	if err := s.cache.Rebuild(ctx); err != nil {
		logger.Error().Err(err).Msg("initial xds cache rebuild failed")
	}

	var sub events.Subscriber
	if s.broker != nil {
		sub = s.broker.Subscribe()
		defer s.broker.Unsubscribe(sub)
	}

	ticker := time.NewTicker(s.rebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			s.rebuild(ctx, logger, evt.Message)
		case <-ticker.C:
			s.rebuild(ctx, logger, "periodic")
			for _, id := range s.sessions.SweepIdle(s.idleTTL) {
				metrics.XDSSessionsEvictedTotal.Inc()
				logger.Info().Str("stream", id).Msg("evicted idle xds session")
			}
		}
	}
}

func (s *Server) rebuild(ctx context.Context, logger zerolog.Logger, reason string) {
	timer := metrics.NewTimer()
	if err := s.cache.Rebuild(ctx); err != nil {
		logger.Error().Err(err).Str("reason", reason).Msg("xds cache rebuild failed")
		return
	}
	metrics.XDSRebuildsTotal.Inc()
	timer.ObserveDuration(metrics.XDSRebuildDuration)
}

// StreamAggregatedResources is the ADS entry point. One call runs for the
// lifetime of one Envoy connection; a receive goroutine decouples reading
// the stream from the send/poll loop so an Envoy that stops acking never
// blocks this goroutine's ability to notice new cache versions.
func (s *Server) StreamAggregatedResources(stream discoveryv3.AggregatedDiscoveryService_StreamAggregatedResourcesServer) error {
	streamID := fmt.Sprintf("stream-%d", atomic.AddInt64(&streamCounter, 1))
	ctx := stream.Context()

	reqCh := make(chan *discoveryv3.DiscoveryRequest)
	errCh := make(chan error, 1)
	go func() {
		defer close(reqCh)
		for {
			req, err := stream.Recv()
			if err != nil {
				if err != io.EOF {
					errCh <- err
				}
				return
			}
			select {
			case reqCh <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	var sess *session.Session
	logger := log.WithComponent("xds-server")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if sess != nil {
				s.sessions.Close(streamID)
			}
			return ctx.Err()

		case err := <-errCh:
			if sess != nil {
				s.sessions.Close(streamID)
			}
			return err

		case req, ok := <-reqCh:
			if !ok {
				if sess != nil {
					s.sessions.Close(streamID)
				}
				return nil
			}
			if sess == nil {
				sess = s.openSession(streamID, req)
				logger = log.WithStreamID(log.WithProxyID(logger, sess.NodeID), streamID)
				logger.Info().Msg("xds stream opened")
			}
			sess.Touch()
			if err := s.handleRequest(stream, sess, req, logger); err != nil {
				s.sessions.Close(streamID)
				return err
			}

		case <-ticker.C:
			if sess == nil {
				continue
			}
			sess.Touch()
			if err := s.pollAll(stream, sess); err != nil {
				s.sessions.Close(streamID)
				return err
			}
		}
	}
}

func (s *Server) openSession(streamID string, req *discoveryv3.DiscoveryRequest) *session.Session {
	var meta map[string]any
	if req.Node != nil && req.Node.Metadata != nil {
		meta = req.Node.Metadata.AsMap()
	}
	sc := scope.FromMetadata(meta)
	nodeID := ""
	if req.Node != nil {
		nodeID = req.Node.Id
	}
	return s.sessions.Open(streamID, nodeID, sc)
}

// handleRequest processes one DiscoveryRequest: an ACK (ResponseNonce
// matches the last nonce sent for this type and ErrorDetail is nil), a
// NACK (ResponseNonce matches but ErrorDetail is set), or an initial/new
// subscription for a type_url this session hasn't seen yet. In every
// case it then attempts a send, since an ACK for version N might already
// be stale against version N+1.
func (s *Server) handleRequest(stream discoveryv3.AggregatedDiscoveryService_StreamAggregatedResourcesServer, sess *session.Session, req *discoveryv3.DiscoveryRequest, logger zerolog.Logger) error {
	typeURL, ok := logicalTypeURL(req.TypeUrl)
	if !ok {
		return nil // unknown/unsupported type URL: ignore rather than tear down the whole stream
	}

	ts := sess.State(typeURL)
	result := "initial"
	switch {
	case req.ResponseNonce == "":
		result = "initial"
	case req.ResponseNonce != ts.PendingNonce:
		// Stale nonce from a request that crossed in flight with a newer
		// push; ignore silently, the proxy will re-ack the latest send.
		return nil
	case req.ErrorDetail != nil:
		result = "nack"
		ts.LastNack = true
		ts.LastNackDetail = req.ErrorDetail.GetMessage()
		logger.Warn().Str("type_url", req.TypeUrl).Str("detail", ts.LastNackDetail).Msg("xds nack")
	default:
		result = "ack"
		ts.LastNack = false
		ts.LastAckedVersion = ts.LastSentVersion
	}
	metrics.XDSDiscoveryRequestsTotal.WithLabelValues(req.TypeUrl, result).Inc()

	return s.trySend(stream, sess, typeURL)
}

// pollAll re-checks every type_url this session has ever subscribed to,
// the periodic backstop for sessions that aren't actively churning acks.
func (s *Server) pollAll(stream discoveryv3.AggregatedDiscoveryService_StreamAggregatedResourcesServer, sess *session.Session) error {
	for _, typeURL := range types.AllTypeURLs {
		if err := s.trySend(stream, sess, typeURL); err != nil {
			return err
		}
	}
	return nil
}

// trySend sends the current snapshot for typeURL if its version has
// advanced past what this session last sent. A NACK'd version is never
// re-sent as-is; the next cache rebuild produces a new version once the
// underlying resource is fixed, and that new version is what gets pushed.
func (s *Server) trySend(stream discoveryv3.AggregatedDiscoveryService_StreamAggregatedResourcesServer, sess *session.Session, typeURL types.TypeURL) error {
	snap, err := s.cache.SnapshotFor(sess.Scope, typeURL)
	if err != nil {
		return err
	}

	ts := sess.State(typeURL)
	if snap.VersionNumber == ts.LastSentVersion && ts.PendingNonce != "" {
		return nil
	}

	resourcesOut := make([]*anypb.Any, 0, len(snap.Resources))
	for _, r := range snap.Resources {
		var a anypb.Any
		if err := proto.Unmarshal(r.Any, &a); err != nil {
			return fmt.Errorf("unmarshal resource %q: %w", r.Name, err)
		}
		resourcesOut = append(resourcesOut, &a)
	}

	nonce := uuid.NewString()
	resp := &discoveryv3.DiscoveryResponse{
		VersionInfo: fmt.Sprintf("%d", snap.VersionNumber),
		Resources:   resourcesOut,
		TypeUrl:     resources.TypeURLFor(typeURL),
		Nonce:       nonce,
	}
	if err := stream.Send(resp); err != nil {
		return err
	}

	ts.LastSentVersion = snap.VersionNumber
	ts.PendingNonce = nonce
	metrics.XDSSnapshotVersion.WithLabelValues(sess.Scope.Key(), resp.TypeUrl).Set(float64(snap.VersionNumber))
	return nil
}

func logicalTypeURL(wire string) (types.TypeURL, bool) {
	for _, t := range types.AllTypeURLs {
		if resources.TypeURLFor(t) == wire {
			return t, true
		}
	}
	return "", false
}
