package main

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vizstack/broker/internal/audit"
	"github.com/vizstack/broker/internal/broker"
	"github.com/vizstack/broker/internal/config"
	"github.com/vizstack/broker/internal/health"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/wire"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "vizstackd",
	Short: "VizStack resource broker",
	Long: `vizstackd coordinates access to pools of visualization hardware
(GPUs, SLI bridges, X-server slots, keyboards, mice) shared across a
cluster of render nodes. Clients connect over a local socket or
authenticated TCP, request resource bundles, and drive the X servers
on their allocations through the broker.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the broker daemon",
	Run: func(cmd *cobra.Command, args []string) {
		runBroker()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("VizStack resource broker v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a broker is answering on the local socket",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a starter configuration file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Save(config.Default(), path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			path = "the default config path"
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/vizstack/vizstackd.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	logFileFallback := false

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
			logFileFallback = true
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	// Re-bind package-level logger after Init
	log = logging.L("main")

	if logFileFallback {
		log.Warn("log file fallback active, logging to stdout only", "requestedFile", cfg.LogFile)
	}
}

func runBroker() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)

	// A nil audit logger is a no-op; Close on nil is handled the same way.
	var al *audit.Logger
	if cfg.AuditEnabled {
		al, err = audit.NewLogger(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open audit log: %v\n", err)
			os.Exit(1)
		}
		defer al.Close()
	}

	hm := health.NewMonitor()

	b, err := broker.New(cfg, al, hm)
	if err != nil {
		// Configuration errors at start are fatal.
		fmt.Fprintf(os.Stderr, "Failed to start broker: %v\n", err)
		os.Exit(1)
	}
	if err := b.Listen(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open listening endpoints: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	diag := health.NewDiagnostics(hm, 60*time.Second, cfg.DataDir)
	go diag.Run(ctx)

	log.Info("broker is running",
		"version", version,
		"localSocket", cfg.LocalSocketPath,
		"tcpAddr", cfg.TCPListenAddr,
	)

	if err := b.Serve(ctx); err != nil {
		log.Error("broker exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("broker stopped")
}

// ssmResponse is the client-side shape of a broker response, used only
// by checkStatus. The broker-side encoder lives in internal/protocol.
type ssmResponse struct {
	XMLName  xml.Name `xml:"ssm"`
	Response struct {
		Status  int    `xml:"status"`
		Message string `xml:"message"`
	} `xml:"response"`
}

// checkStatus connects to the local socket, performs the client hello,
// and issues one query_resource to confirm the broker is answering.
func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: not configured")
		return
	}
	if cfg.LocalSocketPath == "" {
		fmt.Println("Status: no local socket configured, cannot probe")
		return
	}

	nc, err := net.DialTimeout("unix", cfg.LocalSocketPath, 3*time.Second)
	if err != nil {
		fmt.Printf("Status: not running (%v)\n", err)
		os.Exit(1)
	}
	conn := wire.NewConn(nc)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	// Disconnect cleanup is requested so this probe can never leak an
	// allocation, even though it makes none.
	hello := "<ssm><client><cleanupOnDisconnect>1</cleanupOnDisconnect></client></ssm>"
	if err := conn.WriteFrame([]byte(hello)); err != nil {
		fmt.Printf("Status: handshake failed (%v)\n", err)
		os.Exit(1)
	}
	if err := conn.WriteFrame([]byte("<ssm><query_resource></query_resource></ssm>")); err != nil {
		fmt.Printf("Status: query failed (%v)\n", err)
		os.Exit(1)
	}

	payload, err := conn.ReadFrame()
	if err != nil {
		fmt.Printf("Status: no response (%v)\n", err)
		os.Exit(1)
	}
	var resp ssmResponse
	if err := xml.Unmarshal(payload, &resp); err != nil {
		fmt.Printf("Status: unreadable response (%v)\n", err)
		os.Exit(1)
	}
	if resp.Response.Status != 0 {
		fmt.Printf("Status: broker answered with error %d: %s\n", resp.Response.Status, resp.Response.Message)
		os.Exit(1)
	}

	fmt.Println("Status: running")
	fmt.Printf("Local socket: %s\n", cfg.LocalSocketPath)
	if cfg.TCPListenAddr != "" {
		fmt.Printf("TCP endpoint: %s (%s)\n", cfg.TCPListenAddr, cfg.AuthScheme)
	}
}
