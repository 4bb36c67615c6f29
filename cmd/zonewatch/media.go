package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/rewired-gh/zonewatch/internal/monitor"
	"github.com/spf13/cobra"
)

func uploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <video>",
		Short: "Upload a recorded video for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.client.HasCredential() {
				return models.ErrAuthRequired
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			msg, err := a.client.UploadVideo(cmd.Context(), f.Name(), f)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}

func streamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Control the backend's live camera stream",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start the live camera stream",
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := a.client.StartLiveStream(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(msg)
				fmt.Println("Feed:", a.client.LiveFeedURL())
				return nil
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the live camera stream",
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := a.client.StopLiveStream(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			},
		},
	)
	return cmd
}

func summaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show today's entries, exits and hourly trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.client.DailySummary(cmd.Context())
			if err != nil {
				return err
			}
			snap := monitor.NewAggregator(nil).IngestSummary(summary)
			printSummary(snap)
			return nil
		},
	}
}

func printSummary(snap monitor.Snapshot) {
	fmt.Printf("Entries: %d  Exits: %d\n", snap.TotalEntries, snap.TotalExits)

	names := make([]string, 0, len(snap.HourlyZoneData))
	for name := range snap.HourlyZoneData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		series := snap.HourlyZoneData[name]
		cells := make([]string, 0, len(series))
		for _, v := range series {
			cells = append(cells, fmt.Sprintf("%.0f", v))
		}
		fmt.Printf("  %-20s %s\n", name, strings.Join(cells, " "))
	}
}
