// Command msgclf-artifact writes demo model artifacts and reports which load
// strategy accepts a given artifact.
//
//	msgclf-artifact demo -profile sentiment -format gob -out food_sentiment_reg.pkl
//	msgclf-artifact inspect -profile spam -text "Free prize, reply now" spam_clf.pkl
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"msgclf/internal/artifact"
	"msgclf/internal/cfg"
	"msgclf/internal/common"
	"msgclf/internal/ml"
	"msgclf/internal/textmodel"
)

var encoders = map[string]func(io.Writer, *textmodel.Model) error{
	"gob":        artifact.EncodeGob,
	"gob-latin1": artifact.EncodeGobLatin1,
	"container":  artifact.EncodeArrayContainer,
	"manifest":   artifact.EncodeManifest,
}

var errUsage = errors.New("usage: msgclf-artifact <demo|inspect> [flags]")

func main() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "demo":
		return runDemo(args[1:], stdout)
	case "inspect":
		return runInspect(args[1:], stdout)
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
}

func runDemo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	var (
		profile = fs.String("profile", common.DefaultProfile, "Dashboard profile: sentiment or spam")
		format  = fs.String("format", "gob", "Artifact format: gob, gob-latin1, container, manifest")
		out     = fs.String("out", "", "Output path (default: the profile's model file)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	encode, ok := encoders[*format]
	if !ok {
		return fmt.Errorf("unknown format %q (want gob, gob-latin1, container or manifest)", *format)
	}
	model, err := textmodel.DemoModel(*profile)
	if err != nil {
		return err
	}
	if *out == "" {
		*out = cfg.DefaultModelPath(*profile)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	if err := encode(f, model); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", *format, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	outcome := artifact.NewLoader().LoadFromPath(*out)
	if !outcome.OK() {
		return fmt.Errorf("written artifact does not load: %w", outcome.Err())
	}
	fmt.Fprintf(stdout, "wrote %s (%s profile, %s format, loads with %s)\n", *out, *profile, *format, outcome.Strategy)
	return nil
}

func runInspect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	var (
		profile = fs.String("profile", common.DefaultProfile, "Dashboard profile used to label sample predictions")
		text    = fs.String("text", "", "Sample message to classify with the loaded model")
		timeout = fs.Duration("timeout", 30*time.Second, "Fetch timeout for http(s) artifacts")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: msgclf-artifact inspect [-profile p] [-text msg] <path|url>")
	}
	source := fs.Arg(0)

	loader := artifact.NewLoader(artifact.WithHTTPClient(artifact.NewHTTPClient(*timeout)))
	var outcome artifact.Outcome
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		outcome = loader.LoadFromURL(context.Background(), source)
	} else {
		outcome = loader.LoadFromPath(source)
	}

	writeAttempts(stdout, loader.Strategies(), outcome)

	if !outcome.OK() {
		return outcome.Err()
	}
	if len(outcome.Substitutions) > 0 {
		fmt.Fprintf(stdout, "placeholders: %s\n", strings.Join(outcome.Substitutions, ", "))
	}

	if *text != "" {
		labels, err := ml.LabelsForProfile(*profile, nil)
		if err != nil {
			return err
		}
		res := ml.NewAdapter(ml.AdapterConfig{Labels: labels}, nil).PredictOne(outcome.Model, *text)
		if !res.OK() {
			fmt.Fprintf(stdout, "prediction: none (%v)\n", res.Err)
		} else {
			fmt.Fprintf(stdout, "prediction: %s (raw %s)\n", res.Label, ml.FormatRaw(res.Raw))
		}
	}
	return nil
}

// writeAttempts renders one row per strategy: failed, loaded or not tried.
func writeAttempts(w io.Writer, strategies []string, outcome artifact.Outcome) {
	failed := make(map[string]string, len(outcome.Attempts))
	var extra []artifact.StrategyError
	for _, a := range outcome.Attempts {
		failed[a.Strategy] = a.Err.Error()
		if !lo.Contains(strategies, a.Strategy) {
			extra = append(extra, a)
		}
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Strategy", "Result", "Detail"})
	table.SetAutoWrapText(false)

	for _, a := range extra {
		table.Append([]string{"-", a.Strategy, "failed", a.Err.Error()})
	}
	for i, name := range strategies {
		result, detail := "not tried", ""
		switch {
		case name == outcome.Strategy && outcome.OK():
			result = "loaded"
		case failed[name] != "":
			result, detail = "failed", failed[name]
		}
		table.Append([]string{fmt.Sprint(i + 1), name, result, detail})
	}
	table.Render()
}
