package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mightyhouseinc/polyfile"
	"github.com/mightyhouseinc/polyfile/pkg/store"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
	"github.com/spf13/cobra"
)

var (
	scanMaxDepth   int
	scanMaxNodes   int
	scanNoParse    bool
	scanOutputPath string
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Map the structure of a file",
	Long:  "Identify every format the file matches, recursively map embedded regions, and print the match tree as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanMaxDepth, "max-depth", 0, "Maximum recursion depth (0 = default)")
	scanCmd.Flags().IntVar(&scanMaxNodes, "max-nodes", 0, "Maximum node count per file (0 = default)")
	scanCmd.Flags().BoolVar(&scanNoParse, "no-parse", false, "Report format matches without recursive parsing")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "", "Also persist the report to a SQLite database")
}

// stderrLogger forwards contained parser faults to stderr.
type stderrLogger struct{}

func (stderrLogger) Logf(format string, args ...any) {
	if quiet {
		return
	}
	color.New(color.FgYellow).Fprintf(os.Stderr, format+"\n", args...)
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	opts := []polyfile.Option{
		polyfile.WithLogger(stderrLogger{}),
	}
	if scanMaxDepth > 0 {
		opts = append(opts, polyfile.WithMaxDepth(scanMaxDepth))
	}
	if scanMaxNodes > 0 {
		opts = append(opts, polyfile.WithMaxNodes(scanMaxNodes))
	}
	if scanNoParse {
		opts = append(opts, polyfile.WithoutParsing())
	}
	m, err := polyfile.NewMatcher(opts...)
	if err != nil {
		return err
	}

	w, err := window.Open(target)
	if err != nil {
		return err
	}
	defer w.Close()

	var roots []*polyfile.Node
	for node, err := range m.Match(w) {
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", target, err)
		}
		logNode(node)
		if node.Parent() == nil {
			roots = append(roots, node)
		}
	}

	records := make([]*polyfile.Record, 0, len(roots))
	for _, root := range roots {
		records = append(records, root.Record())
	}
	out, err := json.Marshal(records)
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if scanOutputPath != "" {
		if err := persistReport(target, records); err != nil {
			return err
		}
	}
	return nil
}

func logNode(node *types.Node) {
	if quiet {
		return
	}
	switch {
	case node.Parent() == nil:
		color.New(color.FgGreen).Fprintf(os.Stderr, "Found a file of type %s at byte offset %d\n", node.Name(), node.Offset())
	case node.IsSubmatch():
		fmt.Fprintf(os.Stderr, "Found a subregion of type %s at byte offset %d\n", node.Name(), node.Offset())
	default:
		color.New(color.FgCyan).Fprintf(os.Stderr, "Found an embedded file of type %s at byte offset %d\n", node.Name(), node.Offset())
	}
}

func persistReport(target string, records []*types.Record) error {
	s, err := store.New(store.Config{Path: scanOutputPath})
	if err != nil {
		return fmt.Errorf("opening report store: %w", err)
	}
	defer s.Close()
	if _, err := s.AddReport(target, records); err != nil {
		return fmt.Errorf("storing report: %w", err)
	}
	return nil
}
