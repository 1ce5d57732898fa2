// atlasmesh converts the configured brain atlases into simplified GLB
// meshes and the brain regions manifest.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/atlasmesh/internal/config"
	"github.com/Faultbox/atlasmesh/internal/logger"
	"github.com/Faultbox/atlasmesh/internal/pipeline"
)

// dataDir must exist in the working directory; every default source and
// output path lives under it.
const dataDir = "data"

var errNoDataDir = errors.New("no data directory")

var rootCmd = &cobra.Command{
	Use:   "atlasmesh",
	Short: "Generate brain region meshes and their manifest from atlas data",
	Long: `atlasmesh extracts cortical regions, the glass-brain shell, subcortical
structures and the cerebellum from the atlases under data/atlases, simplifies
each mesh to its face budget and writes data/brain_meshes/<region>.glb plus
data/brain_regions_manifest.json.

Run it from the project root. Settings may be overridden in atlasmesh.yaml.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: run atlasmesh from the project root, which must contain %s/", errNoDataDir, dataDir)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
			return fmt.Errorf("logger error: %w", err)
		}
		defer logger.Sync()

		logger.Info("=== atlasmesh ===")
		logger.Sugar.Debugf("Config: %+v", cfg)

		rep, err := pipeline.Run(cmd.Context(), cfg)
		if err != nil {
			logger.Error("run failed", zap.Error(err))
			return err
		}
		for _, stageErr := range multierr.Errors(rep.StageErrors) {
			logger.Warn("stage aborted", zap.Error(stageErr))
		}
		logger.Info("done", zap.Int("regions", rep.Manifest.Len()), zap.Int("missing", len(rep.Summary.Missing)))
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
