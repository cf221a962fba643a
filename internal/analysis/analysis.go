// Package analysis runs the full pipeline over a set of artifacts: parse,
// classify, accumulate and freeze the connection graph.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zheng/connviz/internal/classfile"
	"github.com/zheng/connviz/internal/config"
	"github.com/zheng/connviz/internal/diag"
	"github.com/zheng/connviz/internal/graph"
	"github.com/zheng/connviz/internal/marker"
)

// Stats counts the work of one run
type Stats struct {
	Artifacts  int           `json:"artifacts"`
	Classes    int           `json:"classes"`
	Malformed  int           `json:"malformed"`
	Classified int           `json:"classified"`
	Markers    int           `json:"markers"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Result is a finished run: always a graph, plus the warnings found on the way
type Result struct {
	Graph    *graph.Graph
	Warnings diag.Warnings
	Stats    Stats
}

// Run analyzes artifacts with cfg (nil means defaults). Only an invalid
// configuration or a cancelled context fails the run; malformed artifacts
// are skipped and reported as warnings.
func Run(ctx context.Context, artifacts []classfile.Artifact, cfg *config.Config) (*Result, error) {
	start := time.Now()
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classes, failures, err := parseAll(ctx, artifacts, cfg.WorkerCount())
	if err != nil {
		return nil, err
	}

	index := make(marker.MapIndex, len(classes))
	for _, cd := range classes {
		if cd == nil {
			continue
		}
		// the definition from the lowest artifact name wins
		if prev, dup := index[cd.Name]; !dup || cd.Artifact < prev.Artifact {
			index[cd.Name] = cd
		}
	}

	classifier := marker.New(marker.DefaultRules(), marker.OptionsFrom(cfg, index))
	builder := graph.NewBuilder(graph.OptionsFrom(cfg))
	var markers atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount())
	for _, cd := range classes {
		if cd == nil || !marker.Included(cd) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ms := classifier.Classify(cd)
			markers.Add(int64(len(ms)))
			builder.Add(cd, ms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	frozen, warnings := builder.Build()
	for _, f := range failures {
		if f != nil {
			warnings = append(warnings, diag.Malformed(f.Artifact, f))
		}
	}
	warnings.Sort()

	res := &Result{
		Graph:    frozen,
		Warnings: warnings,
		Stats: Stats{
			Artifacts:  len(artifacts),
			Classes:    len(index),
			Malformed:  warnings.Count(diag.MalformedArtifact),
			Classified: builder.Len(),
			Markers:    int(markers.Load()),
		},
	}
	res.Stats.Elapsed = time.Since(start)
	return res, nil
}

// parseAll loads every artifact with at most workers in flight. The
// results are positional: classes[i] or failures[i] is set for artifact i.
func parseAll(ctx context.Context, artifacts []classfile.Artifact, workers int) ([]*classfile.ClassDescriptor, []*classfile.FormatError, error) {
	classes := make([]*classfile.ClassDescriptor, len(artifacts))
	failures := make([]*classfile.FormatError, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range artifacts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cd, err := classfile.LoadArtifact(a)
			if err != nil {
				failures[i] = asFormatError(a.Name, err)
				return nil
			}
			classes[i] = cd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}
	return classes, failures, nil
}

func asFormatError(artifact string, err error) *classfile.FormatError {
	var fe *classfile.FormatError
	if errors.As(err, &fe) {
		return fe
	}
	return &classfile.FormatError{Artifact: artifact, Reason: "unreadable", Err: err}
}

// RunPaths discovers artifacts under roots, honoring cfg's exclude
// patterns, and analyzes them
func RunPaths(ctx context.Context, roots []string, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := classfile.Discover(roots, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	defer set.Close()
	return Run(ctx, set.Artifacts, cfg)
}
