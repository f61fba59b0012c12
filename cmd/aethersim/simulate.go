package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aethersim/internal/admin"
	"aethersim/internal/atmosphere"
	"aethersim/internal/config"
	"aethersim/internal/logging"
	"aethersim/internal/sim"
	"aethersim/internal/syncpeer"
)

var (
	simPrintOnly  bool
	simTUI        bool
	simConfigPath string
	simSchemaPath string
	simTick       time.Duration
	simLogFile    string
	simAdminAddr  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the real-time coordination simulator",
	Long:  "simulate starts the tick loop: field sampling, instability scoring,\nassignment coordination, outcome feedback, and peer state sync.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(simConfigPath, simSchemaPath)
		if err != nil {
			return err
		}

		writer, targetWriter, cleanup, err := newWriters(cfg, simPrintOnly, simTUI, simLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		clusterID := os.Getenv("CLUSTER_ID")
		if clusterID == "" {
			clusterID = "cluster-01"
		}

		tickInterval := simTick
		if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
			d, err := time.ParseDuration(envTick)
			if err != nil {
				return err
			}
			tickInterval = d
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctx = logging.NewContext(ctx, logging.New())

		simulator := sim.NewSimulator(clusterID, cfg, writer, targetWriter, tickInterval, nil, nil)

		// Peer sync layer. Config values can be overridden via env for
		// per-instance deployments.
		listen := cfg.Sync.Listen
		if env := os.Getenv("SYNC_LISTEN"); env != "" {
			listen = env
		}
		peers := cfg.Sync.Peers
		if env := os.Getenv("SYNC_PEERS"); env != "" {
			peers = strings.Split(env, ",")
		}
		if listen != "" || len(peers) > 0 {
			hub := syncpeer.NewHub(simulator.Store(), peers,
				time.Duration(cfg.Sync.SendTimeoutS)*time.Second)
			simulator.SetHub(hub)
			defer hub.Close()
			if listen != "" {
				go func() {
					log.Printf("[Main] Sync listening on %s", listen)
					if err := hub.Listen(ctx, listen); err != nil {
						log.Printf("Sync listener failed: %v", err)
					}
				}()
			}
		}

		if tw, ok := writer.(*sim.TUIWriter); ok {
			tw.SetInjector(func(c atmosphere.Cell) {
				simulator.IngestPayload(atmosphere.Payload{Cells: []atmosphere.Cell{c}, Timestamp: c.Timestamp})
			})
		}

		srv := admin.NewServer(simulator)
		go func() {
			log.Printf("[Main] Admin UI listening on %s", simAdminAddr)
			if aw, ok := writer.(sim.AdminStatusWriter); ok {
				aw.SetAdminStatus(true)
			}
			if err := srv.Start(simAdminAddr); err != nil {
				log.Printf("Admin server failed: %v", err)
				if aw, ok := writer.(sim.AdminStatusWriter); ok {
					aw.SetAdminStatus(false)
				}
			}
		}()

		go simulator.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		log.Println("[Main] Simulation stopped.")
		return nil
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	simulateCmd.Flags().BoolVar(&simTUI, "tui", false, "Render telemetry in an interactive terminal UI")
	simulateCmd.Flags().StringVar(&simConfigPath, "config", "config/simulation.yaml", "Path to simulation configuration YAML")
	simulateCmd.Flags().StringVar(&simSchemaPath, "schema", "schemas/simulation.cue", "Path to CUE schema file")
	simulateCmd.Flags().DurationVar(&simTick, "tick", time.Second, "Cycle tick interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export telemetry/event logs (JSONL)")
	simulateCmd.Flags().StringVar(&simAdminAddr, "admin-addr", ":8080", "Admin UI listen address")
}
