package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"evenkeel/internal/config"
	"evenkeel/internal/media/ffprobe"
	"evenkeel/internal/plan"
	ffmpegsvc "evenkeel/internal/services/ffmpeg"
)

func newPlanCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <file>",
		Short: "Show what normalization would do to a file",
		Long:  "Probes and measures the file, then prints the plan without writing anything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			probe, err := ffprobe.Inspect(cmd.Context(), cfg.FFprobeBinary(), path)
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}
			main, ok := probe.MainAudio()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No audio streams; nothing to do.")
				return nil
			}

			client := ffmpegsvc.NewCLI(ffmpegsvc.WithBinary(cfg.FFmpegBinary()))
			peak, err := client.MeasurePeak(cmd.Context(), ffmpegsvc.PeakRequest{
				Input:       path,
				StreamIndex: main.Index,
				Threads:     cfg.Scheduler.FFmpegThreads,
			})
			if err != nil {
				return fmt.Errorf("measure: %w", err)
			}

			computed := plan.Compute(plan.Input{
				PeakDBFS:         peak,
				TargetDBFS:       cfg.Normalize.TargetPeakDBFS,
				Codec:            main.CodecName,
				Channels:         main.Channels,
				SourceBitrateBPS: main.BitRateBPS(),
				Extension:        strings.ToLower(filepath.Ext(path)),
				MinBitrateBPS:    cfg.MinBitrateBPS(),
				Faststart:        cfg.Normalize.Faststart,
			})

			rows := [][]string{
				{"File", path},
				{"Main audio", fmt.Sprintf("stream %d, %s, %d ch", main.Index, main.CodecName, main.Channels)},
				{"Peak", fmt.Sprintf("%.1f dBFS", peak)},
				{"Target", fmt.Sprintf("%.1f dBFS", cfg.Normalize.TargetPeakDBFS)},
				{"Action", string(computed.Action)},
			}
			if computed.Action == plan.ActionEncode {
				rows = append(rows,
					[]string{"Gain", fmt.Sprintf("%+.2f dB", computed.GainDB)},
					[]string{"Encoder", computed.Encoder},
				)
				if computed.BitrateBPS > 0 {
					rows = append(rows, []string{"Bitrate", fmt.Sprintf("%dk", computed.BitrateBPS/1000)})
				}
				rows = append(rows, []string{"Force MP4", yesNo(computed.ForceMP4)})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}
