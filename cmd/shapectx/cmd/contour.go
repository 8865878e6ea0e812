package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/shapectx/internal/batch"
	"github.com/MeKo-Tech/shapectx/internal/config"
	"github.com/MeKo-Tech/shapectx/internal/report"
)

// contourCmd writes one .ctx report per silhouette image.
var contourCmd = &cobra.Command{
	Use:   "contour [--invert] <src> <dst>",
	Short: "Write a .ctx shape report for each silhouette image",
	Long: `Trace the contours of every silhouette image under src and write their
shape descriptors to <dst>/<name>.ctx.

src is an image file or a directory that is searched recursively. Images are
binarized with Otsu's threshold; light pixels form the silhouette unless
--invert is given. Existing reports are kept unless --force is set.

Supported formats: PNG, JPEG, GIF, BMP, TIFF

Examples:
  shapectx contour shape.png out/
  shapectx contour --invert scans/ out/ --create-dst
  shapectx contour images/ out/ --force --overlay-dir overlays/`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runContourCommand,
}

// prepareDestination checks that dst is a directory, creating it when
// create is set.
func prepareDestination(dst string, create bool) error {
	info, err := os.Stat(dst)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("destination %s is not a directory", dst)
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("destination %s: %w", dst, err)
	case !create:
		return fmt.Errorf("destination %s does not exist (use --create-dst)", dst)
	}
	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	return nil
}

// configToContourConfig maps the configuration and flags of the contour
// command to a batch configuration that writes XML reports into dst.
func configToContourConfig(cfg *config.Config, cmd *cobra.Command, dst string) *batch.Config {
	bc := cfg.ToBatchConfig()
	bc.Format = report.FormatXML
	bc.OutputDir = dst
	bc.OutputFile = ""
	bc.Recursive = true

	if cmd.Flags().Changed("invert") {
		bc.Invert, _ = cmd.Flags().GetBool("invert")
	}
	if cmd.Flags().Changed("threshold") {
		bc.Threshold, _ = cmd.Flags().GetInt("threshold")
	}
	if cmd.Flags().Changed("min-points") {
		bc.MinPoints, _ = cmd.Flags().GetInt("min-points")
	}
	if cmd.Flags().Changed("precision") {
		bc.Precision, _ = cmd.Flags().GetInt("precision")
	}
	if cmd.Flags().Changed("force") {
		bc.Force, _ = cmd.Flags().GetBool("force")
	}
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("overlay-dir") {
		bc.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
	}
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	return bc
}

func runContourCommand(cmd *cobra.Command, args []string) error {
	src, dst := args[0], args[1]
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	create, _ := cmd.Flags().GetBool("create-dst")
	if err := prepareDestination(dst, create); err != nil {
		return err
	}

	cfg := configToContourConfig(GetConfig(), cmd, dst)
	result, err := batch.ProcessBatch(cmd.Context(), []string{src}, cfg)
	if err != nil {
		return err
	}

	for _, fe := range result.Errors {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", fe)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d report(s) written, %d skipped, %d failed\n",
		len(result.Written), len(result.Skipped), len(result.Errors))

	if len(result.Errors) > 0 {
		return fmt.Errorf("%d of %d image(s) failed", len(result.Errors), len(result.ImagePaths))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(contourCmd)

	contourCmd.Flags().Bool("invert", false, "treat dark pixels as the silhouette")
	contourCmd.Flags().Int("threshold", -1, "fixed gray threshold 0-255 (-1 selects Otsu)")
	contourCmd.Flags().Int("min-points", 1, "contours with fewer points are reported as failed")
	contourCmd.Flags().Int("precision", report.DefaultPrecision, "significant digits of written numbers")
	contourCmd.Flags().Bool("force", false, "overwrite existing reports")
	contourCmd.Flags().Bool("create-dst", false, "create the destination directory if missing")
	contourCmd.Flags().IntP("workers", "w", 0, "number of images analyzed in parallel")
	contourCmd.Flags().String("overlay-dir", "", "directory to save overlay images")
	contourCmd.Flags().Bool("progress", false, "show progress bar")
}
