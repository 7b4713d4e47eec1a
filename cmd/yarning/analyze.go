package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/yarning/internal/analysis"
	"github.com/MikeSquared-Agency/yarning/internal/cache"
	"github.com/MikeSquared-Agency/yarning/internal/events"
	"github.com/MikeSquared-Agency/yarning/internal/service"
	"github.com/MikeSquared-Agency/yarning/internal/sqlitestore"
)

var (
	projectName  string
	organization string
	storyteller  string
	intelligent  bool
	modelID      string
	regenerate   bool
)

// idSpace keeps local identifiers stable across runs so repeated analyses
// of unchanged files hit the cache.
var idSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("yarning"))

var analyzeCmd = &cobra.Command{
	Use:   "analyze [transcript files...]",
	Short: "Ingest transcript files into the local database and analyse the project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := sqlitestore.Open(cfg.SQLitePath, slog.Default())
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()

		project := analysis.Project{
			ID:               uuid.NewSHA1(idSpace, []byte("project:"+projectName)).String(),
			Name:             projectName,
			OrganizationName: organization,
		}
		if err := db.UpsertProject(ctx, project); err != nil {
			return err
		}

		for _, path := range args {
			t, err := readTranscript(project.ID, path)
			if err != nil {
				return err
			}
			if err := db.UpsertTranscript(ctx, t); err != nil {
				return err
			}
			slog.Debug("transcript ingested", "path", path, "transcript_id", t.ID, "words", t.WordCount)
		}

		svc, err := newService(ctx, cfg, db, events.NewNotifier(nil, slog.Default()))
		if err != nil {
			return err
		}
		env, err := svc.Analyze(ctx, service.Request{
			ProjectID:   project.ID,
			Intelligent: intelligent,
			Model:       modelID,
			Regenerate:  regenerate,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash [transcript files...]",
	Short: "Print the content hash a set of transcripts is cached under",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts := make([]string, 0, len(args))
		for _, path := range args {
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			texts = append(texts, string(b))
		}
		fmt.Println(cache.ContentHash(texts))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&projectName, "project", "p", "local", "Project name")
	analyzeCmd.Flags().StringVar(&organization, "org", "", "Organisation name")
	analyzeCmd.Flags().StringVarP(&storyteller, "storyteller", "s", "", "Storyteller name for every file (default: file name)")
	analyzeCmd.Flags().BoolVarP(&intelligent, "intelligent", "i", false, "Use model-backed analysis")
	analyzeCmd.Flags().StringVarP(&modelID, "model", "m", "", "Model identifier (default: YARNING_MODEL)")
	analyzeCmd.Flags().BoolVar(&regenerate, "regenerate", false, "Ignore any cached analysis")
}

func readTranscript(projectID, path string) (analysis.Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return analysis.Transcript{}, fmt.Errorf("read %s: %w", path, err)
	}
	text := string(b)
	if strings.TrimSpace(text) == "" {
		return analysis.Transcript{}, fmt.Errorf("%s is empty", path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := storyteller
	if name == "" {
		name = title
	}
	return analysis.Transcript{
		ID:              uuid.NewSHA1(idSpace, []byte("transcript:"+projectID+":"+filepath.Base(path))).String(),
		ProjectID:       projectID,
		StorytellerID:   uuid.NewSHA1(idSpace, []byte("storyteller:"+name)).String(),
		StorytellerName: name,
		Title:           title,
		Text:            text,
		WordCount:       len(strings.Fields(text)),
	}, nil
}
