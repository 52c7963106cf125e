package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/CursedScorpio/fleetdeck/internal/api"
	"github.com/CursedScorpio/fleetdeck/internal/config"
	"github.com/CursedScorpio/fleetdeck/internal/fleet"
	"github.com/CursedScorpio/fleetdeck/internal/update"
)

// Table column widths for list command output
const (
	tableColName   = 20
	tableColStatus = 10
	tableColStream = 36
)

const cliTimeout = 30 * time.Second

// newCLIClient builds a client from the config file for one-shot
// commands.
func newCLIClient() *api.Client {
	path, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	return api.New(api.Config{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	})
}

func cliContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cliTimeout)
}

func handleList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: fleetdeck list [--json]")
		fmt.Println()
		fmt.Println("List all boxes with their viewers.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	client := newCLIClient()
	ctx, cancel := cliContext()
	defer cancel()

	boxes, err := client.ListBoxes(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	viewers, err := client.ListViewers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		out := struct {
			Boxes   []fleet.Box    `json:"boxes"`
			Viewers []fleet.Viewer `json:"viewers"`
		}{Boxes: boxes, Viewers: viewers}
		payload, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	if len(boxes) == 0 {
		fmt.Println("No boxes.")
		return
	}

	byBox := make(map[string][]fleet.Viewer)
	for _, v := range viewers {
		byBox[v.BoxID] = append(byBox[v.BoxID], v)
	}

	fmt.Printf("%-*s %-*s %-*s %s\n", tableColName, "NAME", tableColStatus, "STATUS", tableColStream, "STREAM", "ID")
	fmt.Println(strings.Repeat("-", tableColName+tableColStatus+tableColStream+15))
	for _, b := range boxes {
		name := b.Name
		if name == "" {
			name = b.ID
		}
		fmt.Printf("%-*s %-*s %-*s %s\n",
			tableColName, truncate(name, tableColName),
			tableColStatus, string(b.Status),
			tableColStream, truncate(b.StreamURL, tableColStream),
			b.ID)
		for _, v := range byBox[b.ID] {
			label := v.Streamer
			if label == "" {
				label = v.ID
			}
			fmt.Printf("  %-*s %-*s %-*s %s\n",
				tableColName-2, truncate(label, tableColName-2),
				tableColStatus, string(v.Status),
				tableColStream, truncate(v.StreamURL, tableColStream),
				v.ID)
		}
	}
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Println("Usage: fleetdeck status <id> [--json]")
		fmt.Println()
		fmt.Println("Show one box or viewer. Boxes are tried first.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	id := fs.Arg(0)

	client := newCLIClient()
	ctx, cancel := cliContext()
	defer cancel()

	if box, err := client.GetBox(ctx, id); err == nil {
		printEntity(box, *jsonOutput, func() {
			name := box.Name
			if name == "" {
				name = box.ID
			}
			fmt.Printf("box %s\n", name)
			fmt.Printf("  status   %s\n", box.Status)
			if box.IPAddress != "" {
				fmt.Printf("  ip       %s\n", box.IPAddress)
			}
			if box.StreamURL != "" {
				fmt.Printf("  stream   %s\n", box.StreamURL)
			}
			fmt.Printf("  viewers  %d\n", len(box.ViewerIDs))
			if box.Error != "" {
				fmt.Printf("  error    %s\n", box.Error)
			}
		})
		return
	}

	viewer, err := client.GetViewer(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: no box or viewer with id %q: %v\n", id, err)
		os.Exit(1)
	}
	printEntity(viewer, *jsonOutput, func() {
		fmt.Printf("viewer %s\n", viewer.ID)
		fmt.Printf("  box      %s\n", viewer.BoxID)
		fmt.Printf("  status   %s\n", viewer.Status)
		if viewer.Streamer != "" {
			fmt.Printf("  streamer %s\n", viewer.Streamer)
		}
		if viewer.StreamURL != "" {
			fmt.Printf("  stream   %s\n", viewer.StreamURL)
		}
		fmt.Printf("  tabs     %d/%d\n", len(viewer.Tabs), viewer.MaxTabs)
		if viewer.Error != "" {
			fmt.Printf("  error    %s\n", viewer.Error)
		}
	})
}

func printEntity(v any, jsonOutput bool, human func()) {
	if !jsonOutput {
		human()
		return
	}
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(payload))
}

func handleStart(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: fleetdeck start <box-id>")
		os.Exit(1)
	}
	client := newCLIClient()
	ctx, cancel := cliContext()
	defer cancel()

	if err := client.StartBox(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Box %s starting.\n", args[0])
}

func handleStop(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: fleetdeck stop <id>")
		os.Exit(1)
	}
	id := args[0]
	client := newCLIClient()
	ctx, cancel := cliContext()
	defer cancel()

	// A box id stops the box; anything else is tried as a viewer.
	if err := client.StopBox(ctx, id); err == nil {
		fmt.Printf("Box %s stopping.\n", id)
		return
	}
	if err := client.StopViewer(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Viewer %s stopping.\n", id)
}

func handleUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	checkOnly := fs.Bool("check", false, "Only check, do not install")
	fs.Usage = func() {
		fmt.Println("Usage: fleetdeck update [--check]")
		fmt.Println()
		fmt.Println("Check GitHub releases and replace the running binary.")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	info, err := update.Check(Version, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !info.Available {
		fmt.Printf("fleetdeck v%s is up to date.\n", Version)
		return
	}
	fmt.Printf("v%s available (current v%s): %s\n", info.LatestVersion, Version, info.ReleaseURL)
	if *checkOnly {
		return
	}
	if err := update.Apply(info.DownloadURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to v%s.\n", info.LatestVersion)
}

func handleConfig(args []string) {
	path, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.CreateExample(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "…")
}
