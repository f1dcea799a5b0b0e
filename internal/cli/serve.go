package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/cnl-graph/internal/integration"
	"github.com/valter-silva-au/cnl-graph/internal/storage"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve this workspace's graphs to other workspaces",
	Long: `Start the fragment server.

Other workspaces point remote.url at this server to find candidate graphs
and import node fragments. The server also answers suggestion requests and,
with the file backend, reloads a graph's schema when schema.yaml changes.

Endpoints:
  GET  /healthz
  GET  /graphs
  GET  /graphs/{graph}/cnl
  GET  /graphs/{graph}/nodes/{node}/cnl[?name=...]
  POST /graphs/{graph}/suggest
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Schemas == nil {
			return fmt.Errorf("graph store not initialized")
		}

		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.ServerAddr
		}
		if addr == "" {
			return fmt.Errorf("no listen address: pass --addr or set server.addr")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if Watcher != nil && Config != nil && Config.WatchSchema {
			if fs, ok := Store.(*storage.FileGraphStore); ok {
				if err := Watcher.Watch(ctx, fs.GraphsDir()); err != nil {
					return fmt.Errorf("watching schemas: %w", err)
				}
			} else {
				logger().Info("schema watching needs the file backend; skipping")
			}
		}

		srv := integration.NewFragmentServer(integration.ServerConfig{
			Graphs:       Store,
			Schemas:      Schemas,
			Metrics:      Collector,
			Logger:       logger(),
			MaxScanLines: maxScanLines(),
			Version:      appVersion,
		})

		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", BasePath, addr)
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			logger().Error("fragment server failed", zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
	rootCmd.AddCommand(serveCmd)
}
