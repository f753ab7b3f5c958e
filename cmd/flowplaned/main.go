package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	discoveryv3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/events"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/httpapi"
	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/materializer"
	"github.com/flowplane/flowplane/pkg/metrics"
	"github.com/flowplane/flowplane/pkg/secrets"
	"github.com/flowplane/flowplane/pkg/secrets/certs"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/xds/model"
	xdsserver "github.com/flowplane/flowplane/pkg/xds/server"
	"github.com/flowplane/flowplane/pkg/xds/session"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "flowplaned",
	Short:   "flowplaned materializes platform API definitions into an Envoy xDS snapshot",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("flowplaned version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("data-dir", "/var/lib/flowplane", "Directory holding flowplane's bbolt databases")
	serveCmd.Flags().String("ads-addr", "0.0.0.0:18000", "Address the ADS gRPC service listens on")
	serveCmd.Flags().String("api-addr", "127.0.0.1:9080", "Address the REST management API listens on")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address the metrics/health HTTP server listens on")
	serveCmd.Flags().String("bootstrap-host", "127.0.0.1", "Control-plane host address written into emitted bootstrap documents")
	serveCmd.Flags().Int("bootstrap-port", 18000, "Control-plane ADS port written into emitted bootstrap documents")
	serveCmd.Flags().Duration("rebuild-interval", 5*time.Second, "Backstop interval for periodic xDS cache rebuilds")
	serveCmd.Flags().Duration("session-idle-ttl", 10*time.Minute, "How long an ADS session may sit without a request before eviction")
	serveCmd.Flags().Uint32("gateway-port", 10000, "Port the shared default gateway listener binds")

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the xDS control plane and its management API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("flowplaned")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	adsAddr, _ := cmd.Flags().GetString("ads-addr")
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	bootstrapHost, _ := cmd.Flags().GetString("bootstrap-host")
	bootstrapPort, _ := cmd.Flags().GetInt("bootstrap-port")
	rebuildInterval, _ := cmd.Flags().GetDuration("rebuild-interval")
	sessionIdleTTL, _ := cmd.Flags().GetDuration("session-idle-ttl")
	gatewayPort, _ := cmd.Flags().GetUint32("gateway-port")

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open flowplane store: %w", err)
	}
	defer store.Close()

	enc, err := buildEncryptionManager()
	if err != nil {
		return fmt.Errorf("build encryption manager: %w", err)
	}

	ca, err := loadOrInitCA(dataDir, enc)
	if err != nil {
		return fmt.Errorf("initialize certificate authority: %w", err)
	}

	registry := filters.NewBuiltinRegistry()
	converter := filters.NewConverter(registry)

	resolver := secrets.NewResolver()
	resolver.Register(secrets.EnvBackend{})
	if vaultAddr := os.Getenv("VAULT_ADDR"); vaultAddr != "" {
		resolver.Register(secrets.NewVaultBackend(vaultAddr, os.Getenv("VAULT_TOKEN"), "secret"))
		if pkiMount := os.Getenv("FLOWPLANE_VAULT_PKI_MOUNT_PATH"); pkiMount != "" {
			pki := secrets.NewVaultPKIBackend(vaultAddr, os.Getenv("VAULT_TOKEN"), pkiMount, os.Getenv("FLOWPLANE_VAULT_PKI_ROLE"))
			pki.Namespace = os.Getenv("VAULT_NAMESPACE")
			resolver.Register(pki)
		}
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	meter := authz.NoopMeter{}
	kernel := authz.New(meter)

	mat := materializer.New(store, registry, broker)

	gatewayAddr := hostFromAddr(adsAddr)
	if err := store.WithinTx(context.Background(), func(tx storage.Tx) error {
		return mat.EnsureDefaultGatewayListener(tx, gatewayAddr, gatewayPort)
	}); err != nil {
		return fmt.Errorf("ensure default gateway listener: %w", err)
	}

	cache := model.NewCache(store, converter, resolver)
	sessions := session.NewTable()

	ads := xdsserver.New(cache, sessions, broker, rebuildInterval, sessionIdleTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ads.RunRebuildLoop(ctx)

	collector := metrics.NewCollector(store, sessions)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("storage", true, "ready")
	metrics.RegisterComponent("xds", true, "ready")
	metrics.RegisterComponent("api", false, "initializing")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	api := httpapi.New(httpapi.Config{
		Store:          store,
		Materializer:   mat,
		Registry:       registry,
		Converter:      converter,
		Kernel:         kernel,
		Resolver:       resolver,
		BootstrapToken: os.Getenv("BOOTSTRAP_TOKEN"),
		SessionTTL:     8 * time.Hour,
		Bootstrap: httpapi.BootstrapConfig{
			ControlPlaneHost: bootstrapHost,
			ControlPlanePort: bootstrapPort,
			AdminAddress:     "127.0.0.1:9901",
		},
		AllowedOrigins: splitOrigins(os.Getenv("FLOWPLANE_MCP_ALLOWED_ORIGINS")),
	})

	apiServer := &http.Server{Addr: apiAddr, Handler: api.Router()}
	errCh := make(chan error, 2)
	go func() {
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("management API error: %w", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
	metrics.RegisterComponent("api", true, "ready")
	logger.Info().Str("addr", apiAddr).Msg("management API listening")

	trustDomain := os.Getenv("FLOWPLANE_SPIFFE_TRUST_DOMAIN")
	if trustDomain == "" {
		trustDomain = "flowplane.internal"
	}
	serverCert, err := ca.IssueProxyCertificate(trustDomain, "", "control-plane")
	if err != nil {
		return fmt.Errorf("issue ADS server certificate: %w", err)
	}
	rootPool := x509.NewCertPool()
	rootPool.AppendCertsFromPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.GetRootCACert()}))
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*serverCert},
		ClientAuth:   tls.RequestClientCert,
		ClientCAs:    rootPool,
		MinVersion:   tls.VersionTLS13,
	}
	creds := credentials.NewTLS(tlsConfig)
	grpcServer := grpc.NewServer(grpc.Creds(creds))
	discoveryv3.RegisterAggregatedDiscoveryServiceServer(grpcServer, ads)

	lis, err := net.Listen("tcp", adsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", adsAddr, err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("ADS server error: %w", err)
		}
	}()
	logger.Info().Str("addr", adsAddr).Msg("ADS gRPC service listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("fatal error, shutting down")
	}

	cancel()
	grpcServer.GracefulStop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)

	logger.Info().Msg("shutdown complete")
	return nil
}

// buildEncryptionManager derives the key that wraps the CA root private
// key in flowplane-ca.db from FLOWPLANE_CLUSTER_SEED (an operator-chosen
// passphrase); every node of a deployment must share the same seed so
// any of them can decrypt the stored CA key.
func buildEncryptionManager() (*secrets.EncryptionManager, error) {
	seed := os.Getenv("FLOWPLANE_CLUSTER_SEED")
	if seed == "" {
		return nil, fmt.Errorf("FLOWPLANE_CLUSTER_SEED must be set")
	}
	return secrets.NewEncryptionManager(secrets.DeriveKeyFromClusterSeed(seed))
}

// loadOrInitCA opens (or creates) the CA's dedicated bbolt file — kept
// separate from the main flowplane.db since certs.Store has no notion
// of tenant scoping or audit rows, unlike pkg/storage's repositories.
func loadOrInitCA(dataDir string, enc *secrets.EncryptionManager) (*certs.CertAuthority, error) {
	caDB, err := bbolt.Open(dataDir+"/flowplane-ca.db", 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open CA store: %w", err)
	}
	caStore, err := certs.NewBoltStore(caDB)
	if err != nil {
		return nil, fmt.Errorf("init CA bucket: %w", err)
	}

	ca := certs.NewCertAuthority(caStore)
	if err := ca.LoadFromStore(enc); err != nil {
		if err := ca.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize CA: %w", err)
		}
		if err := ca.SaveToStore(enc); err != nil {
			return nil, fmt.Errorf("persist CA: %w", err)
		}
	}
	return ca, nil
}

func hostFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return "0.0.0.0"
	}
	return host
}

// splitOrigins parses FLOWPLANE_MCP_ALLOWED_ORIGINS as a comma-separated
// list of browser origins, trimming whitespace and dropping empty entries.
func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
