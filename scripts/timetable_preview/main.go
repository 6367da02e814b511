// Command timetable_preview runs the assignment engine over a JSON snapshot
// without touching the database. Useful for tuning restrictions offline.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/pkg/export"
)

type snapshot struct {
	Grid     *scheduler.Grid             `json:"grid"`
	Subjects []scheduler.Subject         `json:"subjects"`
	Teachers []scheduler.Teacher         `json:"teachers"`
	Reserved map[string][]scheduler.Slot `json:"reserved"`
}

type options struct {
	input  string
	mode   string
	seed   int64
	format string
	output string
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "-", "Snapshot JSON file, - for stdin")
	flag.StringVar(&opts.mode, "mode", "deterministic", "deterministic or random")
	flag.Int64Var(&opts.seed, "seed", 1, "Seed for random mode")
	flag.StringVar(&opts.format, "format", "csv", "Output format: csv, json or pdf")
	flag.StringVar(&opts.output, "out", "-", "Output file, - for stdout")
	flag.Parse()

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("timetable preview failed: %v", err)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	in, err := readSnapshot(opts.input, stdin)
	if err != nil {
		return err
	}

	var strategy scheduler.Strategy
	switch opts.mode {
	case "", "deterministic":
		strategy = scheduler.Greedy()
	case "random":
		strategy = scheduler.Random(opts.seed)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}

	result, err := scheduler.Run(in, strategy)
	if err != nil {
		return err
	}

	content, err := render(opts.format, in, result)
	if err != nil {
		return err
	}
	if opts.output == "" || opts.output == "-" {
		_, err = stdout.Write(content)
	} else {
		err = os.WriteFile(opts.output, content, 0o644)
	}
	if err != nil {
		return err
	}

	for _, id := range sortedUnmet(result) {
		log.Printf("unmet: subject %s missing %d hour(s)", id, result.UnmetHours[id])
	}
	return nil
}

func readSnapshot(path string, stdin io.Reader) (scheduler.Input, error) {
	var raw []byte
	var err error
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return scheduler.Input{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return scheduler.Input{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(snap.Subjects) == 0 {
		return scheduler.Input{}, errors.New("snapshot has no subjects")
	}

	in := scheduler.Input{
		Grid:     scheduler.DefaultGrid(),
		Subjects: snap.Subjects,
		Teachers: make(map[string]scheduler.Teacher, len(snap.Teachers)),
		Reserved: snap.Reserved,
	}
	if snap.Grid != nil {
		in.Grid = *snap.Grid
	}
	for _, teacher := range snap.Teachers {
		in.Teachers[teacher.ID] = teacher
	}
	return in, nil
}

func render(format string, in scheduler.Input, result *scheduler.Result) ([]byte, error) {
	if format == "json" {
		return json.MarshalIndent(result, "", "  ")
	}

	names := make(map[string]string, len(in.Subjects))
	for _, subject := range in.Subjects {
		names[subject.ID] = subject.Name
		if subject.Name == "" {
			names[subject.ID] = subject.ID
		}
	}
	cells := make(map[scheduler.Slot]string, len(result.Sessions))
	for _, session := range result.Sessions {
		cells[session.Slot()] = names[session.SubjectID]
	}
	data := export.Timetable(in.Grid.Days, in.Grid.Periods, func(day, period int) string {
		return cells[scheduler.Slot{Day: day, Period: period}]
	})

	switch format {
	case "", "csv":
		return export.NewCSVExporter().Render(data, "")
	case "pdf":
		return export.NewPDFExporter().Render(data, "Timetable preview")
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func sortedUnmet(result *scheduler.Result) []string {
	ids := make([]string, 0, len(result.UnmetHours))
	for id := range result.UnmetHours {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
