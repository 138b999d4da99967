package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// reporter prints calibration progress and results to the terminal.
type reporter struct {
	cyan  *color.Color
	green *color.Color
	red   *color.Color
	bold  *color.Color
}

func newReporter() *reporter {
	return &reporter{
		cyan:  color.New(color.FgCyan, color.Bold),
		green: color.New(color.FgGreen),
		red:   color.New(color.FgRed, color.Bold),
		bold:  color.New(color.Bold),
	}
}

func (r *reporter) section(title string) {
	fmt.Println()
	_, _ = r.cyan.Println(title)
}

func (r *reporter) label(width int, label, value string) {
	padded := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(padded), value)
}

// countdown shows a short bar while the camera warms up before capture.
func countdown(seconds int) {
	bar := progressbar.NewOptions(seconds,
		progressbar.OptionSetDescription("warming up camera"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	for i := 0; i < seconds; i++ {
		time.Sleep(time.Second)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
}

func (r *reporter) result(passed bool, side string) {
	if passed {
		fmt.Printf("  %s %s\n", r.green.Add(color.Bold).Sprint("✓"), r.bold.Sprint("calibration within tolerance"))
	} else {
		fmt.Printf("  %s %s\n", r.red.Sprint("✗"), r.bold.Sprint("calibration exceeds tolerance, not saved"))
	}
	fmt.Println("  " + side)
}
