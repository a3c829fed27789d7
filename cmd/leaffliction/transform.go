package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"leaffliction/internal/landmark"
	"leaffliction/internal/pipeline"
	"leaffliction/internal/shape"
	"leaffliction/internal/viewer"

	"github.com/spf13/cobra"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run the transformation pipeline on one image",
	Long: `Run the transformation pipeline on one image.

With --policy render the artifacts are shown in a window, with persist they
are written as <dst>_<stage>.<ext>, and with collect a JSON summary of the
measured objects is printed. Without --policy, persist is used when --dst is
given and render otherwise.`,
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().String("src", "", "Source image (JPEG or PNG)")
	transformCmd.Flags().String("dst", "", "Destination prefix of persisted artifacts")
	transformCmd.Flags().String("stages", "", "Comma separated stages (default: configured set)")
	transformCmd.Flags().String("policy", "", "Output policy (render, persist, collect)")
	transformCmd.Flags().Bool("debug", false, "Emit intermediate results of every stage")
	transformCmd.MarkFlagRequired("src")
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	src, _ := cmd.Flags().GetString("src")
	dst, _ := cmd.Flags().GetString("dst")
	stageList, _ := cmd.Flags().GetString("stages")
	policy, _ := cmd.Flags().GetString("policy")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	stages, err := pipeline.ParseStages(stageList)
	if err != nil {
		return err
	}

	pc, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	pc.Logger = log
	pc.Debug = pc.Debug || debug
	pc.Remover = cfg.NewRemover()
	defer closeRemover(pc.Remover, log)

	if policy == "" {
		policy = "render"
		if dst != "" {
			policy = "persist"
		}
	}

	var gallery *viewer.Gallery
	switch policy {
	case "render":
		gallery = viewer.NewGallery()
		pc.Output = pipeline.Render{Display: gallery.Add}
	case "persist":
		if dst == "" {
			dst = strings.TrimSuffix(src, filepath.Ext(src))
		}
		pc.Output = cfg.Persist(dst)
	case "collect":
		pc.Output = pipeline.Collect{}
	default:
		return fmt.Errorf("unknown policy %q", policy)
	}

	img, err := pipeline.NewLoader(log).LoadFromPath(src)
	if err != nil {
		return err
	}
	g, err := pipeline.New(img, pc)
	if err != nil {
		img.Close()
		return err
	}
	defer g.Close()

	arts, err := g.Get(stages...)
	if err != nil {
		return err
	}

	log.Info("CLI", "transformation complete", map[string]interface{}{
		"src":       src,
		"policy":    policy,
		"artifacts": len(arts.Stages()),
		"elapsed":   g.Timings().Total().String(),
	})

	switch policy {
	case "render":
		viewer.Show(gallery, AppName+" - "+filepath.Base(src))
	case "collect":
		return printSummary(cmd, g, arts)
	}
	return nil
}

type summary struct {
	Source    string              `json:"source"`
	Stages    []string            `json:"stages"`
	Objects   []shape.Object      `json:"objects,omitempty"`
	Landmarks *landmark.Landmarks `json:"landmarks,omitempty"`
}

// printSummary reports the measurements of the requested stages only, so
// nothing beyond them is computed.
func printSummary(cmd *cobra.Command, g *pipeline.Graph, arts *pipeline.Artifacts) error {
	var s summary
	if _, ok := arts.Get(pipeline.Analyze); ok {
		objects, err := g.Objects()
		if err != nil {
			return err
		}
		s.Objects = objects
	}
	if _, ok := arts.Get(pipeline.Pseudolandmarks); ok {
		landmarks, err := g.Landmarks()
		if err != nil {
			return err
		}
		s.Landmarks = &landmarks
	}

	s.Source, _ = cmd.Flags().GetString("src")
	for _, st := range arts.Stages() {
		s.Stages = append(s.Stages, st.String())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
