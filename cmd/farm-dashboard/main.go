package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var Cmd = &cobra.Command{
	Use:   "farm-dashboard",
	Short: "Farm advisory dashboard: weather, crops, schemes and translation for farmers",
}

func init() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	Cmd.PersistentFlags().AddGoFlagSet(fs)

	Cmd.AddCommand(serveCmd, snapshotCmd)
}

func main() {
	defer klog.Flush()

	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
}
