package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/i474232898/farm-dashboard/internal/config"
	"github.com/i474232898/farm-dashboard/internal/dashboard"
	"github.com/i474232898/farm-dashboard/internal/geo"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Mount one dashboard and print its view as JSON",
	RunE:  snapshot,
}

var snapshotArgs struct {
	user    string
	lang    string
	lat     float64
	lon     float64
	timeout time.Duration
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotArgs.user, "user", "", "user id whose dashboard to mount")
	f.StringVar(&snapshotArgs.lang, "lang", "", "display language (defaults to the base language)")
	f.Float64Var(&snapshotArgs.lat, "lat", 0, "device latitude; requires --lon")
	f.Float64Var(&snapshotArgs.lon, "lon", 0, "device longitude; requires --lat")
	f.DurationVar(&snapshotArgs.timeout, "timeout", time.Minute, "overall time limit")
	snapshotCmd.MarkFlagRequired("user")
}

func snapshot(cmd *cobra.Command, argv []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotArgs.timeout)
	defer cancel()
	ctx = klog.NewContext(ctx, klog.Background().WithName("snapshot"))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	lang := ""
	if snapshotArgs.lang != "" {
		if lang, err = c.languages.Normalize(snapshotArgs.lang); err != nil {
			return err
		}
	}

	var device geo.Geolocator
	latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon")
	switch {
	case latSet != lonSet:
		return errors.New("--lat and --lon must be given together")
	case latSet:
		device = geo.DevicePosition{Position: geo.Coordinates{Lat: snapshotArgs.lat, Lon: snapshotArgs.lon}}
	}

	manager := c.newManager(nil)
	s, err := manager.Open(ctx, dashboard.OpenRequest{UserID: snapshotArgs.user, Language: lang, Device: device})
	if err != nil {
		return err
	}
	defer manager.Close(ctx, s.ID())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s.View())
}
