package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rewired-gh/zonewatch/internal/geometry"
	"github.com/rewired-gh/zonewatch/internal/models"
	"github.com/spf13/cobra"
)

func zonesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "Manage saved zones",
	}
	cmd.AddCommand(zonesListCmd(a), zonesAddCmd(a), zonesDeleteCmd(a), zonesClearCmd(a))
	return cmd
}

func zonesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List zones (backend first, local cache as fallback)",
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := a.zones.Load(cmd.Context())
			if err != nil {
				return err
			}
			zones := a.zones.Snapshot()
			if len(zones) == 0 {
				fmt.Println("No zones saved")
				return nil
			}
			fmt.Printf("%d zone(s) from %s:\n", len(zones), origin)
			for _, z := range zones {
				cx, cy := geometry.Centroid(z.Coordinates)
				fmt.Printf("  %-6s %-20s %v centre=(%.0f,%.0f)\n", z.ID, z.Name, z.Coordinates, cx, cy)
			}
			return nil
		},
	}
}

func zonesAddCmd(a *app) *cobra.Command {
	var (
		name    string
		points  []string
		screen  []string
		display string
		frame   string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new 4-point zone",
		Long: "Points are given in frame pixels with --point x,y, or as positions on a\n" +
			"scaled display with --screen x,y plus --display left,top,width,height and\n" +
			"--frame widthxheight.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var draft geometry.Draft

			for _, raw := range points {
				x, y, err := parsePair(raw, ",")
				if err != nil {
					return err
				}
				if err := draft.AddPoint(models.Point{X: int(x), Y: int(y)}); err != nil {
					return err
				}
			}

			if len(screen) > 0 {
				surface, err := staticSurface(display, frame)
				if err != nil {
					return err
				}
				for _, raw := range screen {
					x, y, err := parsePair(raw, ",")
					if err != nil {
						return err
					}
					if _, err := draft.AddScreenPoint(surface, geometry.ScreenPoint{X: x, Y: y}); err != nil {
						return err
					}
				}
			}

			zone, err := draft.Complete(name)
			if err != nil {
				return err
			}
			if _, err := a.zones.Load(cmd.Context()); err != nil {
				return err
			}
			msg, err := a.zones.Save(cmd.Context(), zone)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Zone name")
	cmd.Flags().StringArrayVar(&points, "point", nil, "Frame point x,y (repeat 4 times)")
	cmd.Flags().StringArrayVar(&screen, "screen", nil, "Display point x,y (repeat 4 times)")
	cmd.Flags().StringVar(&display, "display", "", "Displayed frame rectangle left,top,width,height")
	cmd.Flags().StringVar(&frame, "frame", "", "Frame resolution, e.g. 1280x720")
	return cmd
}

func zonesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.zones.Load(cmd.Context()); err != nil {
				return err
			}
			for _, z := range a.zones.Snapshot() {
				if string(z.ID) == args[0] || z.Name == args[0] {
					if err := a.zones.Delete(cmd.Context(), z); err != nil {
						return err
					}
					fmt.Printf("Deleted zone %s\n", z.Name)
					return nil
				}
			}
			return fmt.Errorf("no zone matches %q", args[0])
		},
	}
}

func zonesClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every zone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.zones.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.zones.ClearAll(cmd.Context()); err != nil {
				fmt.Println("Cleared locally; some backend deletes failed:", err)
				return nil
			}
			fmt.Println("All zones cleared")
			return nil
		},
	}
}

func parsePair(raw, sep string) (float64, float64, error) {
	parts := strings.Split(raw, sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two values separated by %q, got %q", sep, raw)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number in %q: %w", raw, err)
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number in %q: %w", raw, err)
	}
	return a, b, nil
}

// staticSurface builds a surface from a fixed display rectangle and frame size.
func staticSurface(display, frame string) (*geometry.LinearSurface, error) {
	if display == "" || frame == "" {
		return nil, errors.New("--screen needs --display and --frame")
	}
	parts := strings.Split(display, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("--display must be left,top,width,height")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --display: %w", err)
		}
		vals[i] = v
	}
	w, h, err := parsePair(frame, "x")
	if err != nil {
		return nil, fmt.Errorf("invalid --frame: %w", err)
	}

	rect := geometry.Rect{Left: vals[0], Top: vals[1], Width: vals[2], Height: vals[3]}
	size := geometry.Size{Width: w, Height: h}
	return geometry.NewLinearSurface(func() (geometry.Rect, geometry.Size) {
		return rect, size
	}), nil
}
