package cmd

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/shapectx/internal/chaincode"
	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/report"
)

// chainCmd groups the Freeman chain code helpers.
var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Encode, decode and describe Freeman chain codes",
	Long: `Convert between closed contours and Freeman chain codes.

A chain is written as "x y c c c ...": the start point followed by one
direction code (0-7) per contour edge. Points are written as "x,y".

Examples:
  shapectx chain encode "0,0 0,1 1,1 1,0"
  shapectx chain decode "0 0 2 0 6 4"
  shapectx chain describe "0 0 2 0 6 4" --format yaml`,
}

var chainEncodeCmd = &cobra.Command{
	Use:          "encode <points>",
	Short:        "Encode a closed contour as a chain code",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parsePoints(args[0])
		if err != nil {
			return err
		}
		ch, err := chaincode.Encode(c)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), ch.String())
		return nil
	},
}

var chainDecodeCmd = &cobra.Command{
	Use:          "decode <chain>",
	Short:        "Decode a chain code into contour points",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := decodeChain(args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatPoints(c))
		return nil
	},
}

var chainDescribeCmd = &cobra.Command{
	Use:          "describe <chain>",
	Short:        "Compute the shape descriptor of a chain-coded contour",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := decodeChain(args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		precision, _ := cmd.Flags().GetInt("precision")

		results := descriptor.AnalyzeAll(cmd.Context(), []geom.Contour{c}, descriptor.ParallelConfig{MaxWorkers: 1})
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		b := geom.BoundingRect(c)
		doc := report.New("", b.Max.X, b.Max.Y, []geom.Contour{c}, nil, results)
		out, err := report.Format(doc, report.Options{Format: format, Precision: precision})
		if err != nil {
			return err
		}
		_, _ = cmd.OutOrStdout().Write(out)
		if results[0].Err != nil {
			return fmt.Errorf("describe: %w", results[0].Err)
		}
		return nil
	},
}

// decodeChain parses and decodes a chain in its string form.
func decodeChain(s string) (geom.Contour, error) {
	ch, err := chaincode.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse chain: %w", err)
	}
	c, err := chaincode.Decode(ch)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return c, nil
}

// parsePoints reads whitespace separated "x,y" pairs.
func parsePoints(s string) (geom.Contour, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("no points given")
	}
	c := make(geom.Contour, 0, len(fields))
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return nil, fmt.Errorf("point %d %q: want x,y", i, f)
		}
		x, err := strconv.Atoi(xs)
		if err != nil {
			return nil, fmt.Errorf("point %d %q: %w", i, f, err)
		}
		y, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("point %d %q: %w", i, f, err)
		}
		c = append(c, image.Pt(x, y))
	}
	return c, nil
}

func formatPoints(c geom.Contour) string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(chainCmd)
	chainCmd.AddCommand(chainEncodeCmd, chainDecodeCmd, chainDescribeCmd)

	chainDescribeCmd.Flags().StringP("format", "f", report.FormatJSON, "output format: xml, json, yaml, csv, text")
	chainDescribeCmd.Flags().Int("precision", report.DefaultPrecision, "significant digits of written numbers")
}
