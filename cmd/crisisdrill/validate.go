package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/rendis/crisisdrill/internal/conditions"
	"github.com/rendis/crisisdrill/internal/diagram"
	"github.com/rendis/crisisdrill/internal/loader"
	"github.com/rendis/crisisdrill/internal/validation"
)

var errInvalidScenario = errors.New("scenario is invalid")

// runValidate checks a scenario file and prints its issues to w. With
// -mermaid or -ascii a valid scenario is also drawn.
func runValidate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(w)
	file := fs.String("f", "", "scenario document (YAML or JSON)")
	mermaid := fs.Bool("mermaid", false, "print a Mermaid flowchart of a valid scenario")
	ascii := fs.Bool("ascii", false, "print an ASCII diagram of a valid scenario")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("validate: -f is required")
	}

	evaluator, err := conditions.NewEvaluator()
	if err != nil {
		return err
	}
	validator, err := validation.NewGraphValidator(evaluator)
	if err != nil {
		return err
	}

	cfg, result, err := loader.New(validator).LoadFile(*file)
	if err != nil {
		return err
	}
	for _, issue := range result.Issues() {
		fmt.Fprintln(w, issue)
	}
	if !result.Valid() {
		return fmt.Errorf("%s: %w (%d errors)", *file, errInvalidScenario, len(result.Errors))
	}
	fmt.Fprintf(w, "ok %s: %d states, %d branches\n", cfg.ID, len(cfg.States), len(cfg.Branches))

	if !*mermaid && !*ascii {
		return nil
	}
	title := cfg.Title
	if title == "" {
		title = cfg.ID
	}
	model, err := diagram.Build(cfg.Graph(), title, nil)
	if err != nil {
		return err
	}
	if *mermaid {
		fmt.Fprintln(w, diagram.RenderMermaid(model))
	}
	if *ascii {
		fmt.Fprintln(w, diagram.RenderASCIIAuto(context.Background(), model, binDir(crisisdrillDir())))
	}
	return nil
}
