// Command calibrate runs the 20-dot grid calibration against a single
// captured frame and saves the resulting homography, or inspects a
// previously saved one.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := NewRoot()

	rootCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Solve and inspect the camera-to-robot homography",
	}
	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", root.configPath, "path to config file")

	rootCmd.AddCommand(newRunCmd(root))
	rootCmd.AddCommand(newShowCmd(root))

	return rootCmd
}
