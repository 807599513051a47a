// Command storyextract runs the user-story extraction pipeline from the
// shell: extract a single story, evaluate a test corpus, or prepare a
// training dataset from raw source documents.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	language "cloud.google.com/go/language/apiv1"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/genai"

	storyextract "github.com/datar-psa/storyextract"
	"github.com/datar-psa/storyextract/corpus"
	"github.com/datar-psa/storyextract/gemini"
	"github.com/datar-psa/storyextract/prep"
	"github.com/datar-psa/storyextract/score"
)

var (
	verbose  bool
	project  string
	location string
	model    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "storyextract",
	Short: "Convert free-text user stories into structured records",
	Long: `storyextract drives a fine-tuned seq2seq model that turns user stories
into {actor, action, benefit, acceptance_criteria} records, recovering
structure from unreliable model output via JSON repair and pattern
extraction.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [story]",
	Short: "Extract a structured record from one user story",
	Long: `Runs a single story through the model and prints the recovered record
as JSON, together with the binary confidence signal.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the model against a JSONL test corpus",
	Long: `Loads a line-delimited JSON corpus of {input, target} pairs, runs every
usable record through the pipeline, and prints field-accuracy statistics.
Records with undecodable targets or an empty truth actor are excluded.`,
	RunE: runEvaluate,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare train/validation/test corpora from raw documents",
	Long: `Reads raw source documents as line-delimited JSON {"text": ...}, mines
acceptance criteria, and writes train.jsonl, validation.jsonl and
test.jsonl into the output directory. With --moderate, documents flagged
by the Cloud Natural Language moderation API are excluded first.`,
	RunE: runPrepare,
}

var (
	testFile   string
	similarity bool
	embedModel string

	inFile   string
	outDir   string
	moderate bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&project, "project", os.Getenv("GOOGLE_PROJECT_ID"), "Google Cloud project")
	rootCmd.PersistentFlags().StringVar(&location, "location", os.Getenv("GOOGLE_REGION"), "Vertex AI location")
	rootCmd.PersistentFlags().StringVar(&model, "model", "gemini-2.5-flash", "generation model name")

	evaluateCmd.Flags().StringVar(&testFile, "test-file", "datasets/test.jsonl", "JSONL test corpus")
	evaluateCmd.Flags().BoolVar(&similarity, "similarity", false, "report embedding similarity for imperfect matches")
	evaluateCmd.Flags().StringVar(&embedModel, "embedding-model", "text-embedding-005", "embedding model for --similarity")

	prepareCmd.Flags().StringVar(&inFile, "in", "", "JSONL source documents ({\"text\": ...} per line)")
	prepareCmd.Flags().StringVar(&outDir, "out", "datasets", "output directory")
	prepareCmd.Flags().BoolVar(&moderate, "moderate", false, "drop documents flagged by content moderation")
	_ = prepareCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(extractCmd, evaluateCmd, prepareCmd)
}

func newGenaiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func newPipeline(ctx context.Context) (*storyextract.Pipeline, error) {
	client, err := newGenaiClient(ctx)
	if err != nil {
		return nil, err
	}
	return storyextract.NewPipeline(
		storyextract.WithGenerator(gemini.NewGenerator(client, model)),
	), nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	story := strings.Join(args, " ")
	ex, err := pipeline.Extract(ctx, story)
	if err != nil {
		return err
	}

	logger.Debug("raw model output", zap.String("raw", ex.RawOutput))

	out := struct {
		storyextract.Record
		Confidence string `json:"confidence"`
	}{ex.Record, ex.Confidence.String()}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(testFile)
	if err != nil {
		return fmt.Errorf("failed to open test corpus: %w", err)
	}
	defer f.Close()

	examples, err := corpus.Load(f)
	if err != nil {
		return err
	}
	logger.Info("loaded corpus", zap.Int("examples", len(examples)))

	evaluator := corpus.NewEvaluator(pipeline, corpus.WithLogger(logger))
	tally, err := evaluator.Run(ctx, examples)
	if err != nil {
		return err
	}

	rep, err := tally.Report()
	if err != nil {
		fmt.Println("No valid test data found.")
		return nil
	}

	fmt.Println(strings.Repeat("=", 40))
	fmt.Println("EVALUATION RESULTS")
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("Total Stories Tested: %d\n", rep.Total)
	fmt.Printf("Perfect Matches:      %d (%.1f%%)\n", rep.Perfect, rep.PerfectPct)
	fmt.Println(strings.Repeat("-", 20))
	fmt.Printf("Actor Accuracy:       %.1f%%\n", rep.ActorPct)
	fmt.Printf("Action Accuracy:      %.1f%%\n", rep.ActionPct)
	fmt.Printf("Benefit Accuracy:     %.1f%%\n", rep.BenefitPct)
	fmt.Println(strings.Repeat("=", 40))

	if similarity {
		return reportSimilarity(ctx, pipeline, examples)
	}
	return nil
}

// reportSimilarity re-runs imperfect records and prints embedding-based
// similarity for their action/benefit fields, as a near-miss diagnostic.
func reportSimilarity(ctx context.Context, pipeline *storyextract.Pipeline, examples []corpus.Example) error {
	client, err := newGenaiClient(ctx)
	if err != nil {
		return err
	}
	embedder := gemini.NewEmbedder(client, embedModel)

	fmt.Println("Near-miss similarity (imperfect records):")
	for i, e := range examples {
		truth, ok := corpus.Truth(e)
		if !ok {
			continue
		}
		story := strings.TrimSpace(strings.TrimPrefix(e.Input, storyextract.DefaultPromptTag))
		ex, err := pipeline.Extract(ctx, story)
		if err != nil {
			continue
		}
		if m := score.Match(ex.Record, truth); m.Perfect {
			continue
		}
		sim, err := score.Similarity(ctx, embedder, ex.Record, truth)
		if err != nil {
			logger.Warn("similarity failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		fmt.Printf("  record %d: action %.2f, benefit %.2f\n", i, sim.Action, sim.Benefit)
	}
	return nil
}

func runPrepare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(inFile)
	if err != nil {
		return fmt.Errorf("failed to open source documents: %w", err)
	}
	defer f.Close()

	docs, err := readDocuments(f)
	if err != nil {
		return err
	}
	logger.Info("loaded source documents", zap.Int("count", len(docs)))

	var filter *prep.SafetyFilter
	if moderate {
		langClient, err := language.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create language client: %w", err)
		}
		defer langClient.Close()
		filter = prep.NewSafetyFilter(gemini.NewLanguageModerationProvider(langClient))
	}

	var examples []corpus.Example
	for i, doc := range docs {
		if filter != nil {
			allowed, flagged, err := filter.Allow(ctx, doc)
			if err != nil {
				return err
			}
			if !allowed {
				logger.Warn("dropping flagged document",
					zap.Int("index", i),
					zap.Any("categories", flagged),
				)
				continue
			}
		}
		examples = append(examples, prep.Pair(doc, map[string]any{"source": inFile}))
	}

	train, validation, test := prep.Split(examples)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for name, split := range map[string][]corpus.Example{
		"train":      train,
		"validation": validation,
		"test":       test,
	} {
		path := outDir + "/" + name + ".jsonl"
		if err := writeSplit(path, split); err != nil {
			return err
		}
		logger.Info("wrote split", zap.String("path", path), zap.Int("count", len(split)))
	}
	return nil
}

// readDocuments decodes one {"text": ...} document per line, skipping
// undecodable or empty lines the same way corpus loading does.
func readDocuments(r io.Reader) ([]string, error) {
	var docs []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var doc struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(line), &doc); err != nil || doc.Text == "" {
			continue
		}
		docs = append(docs, doc.Text)
	}
	if err := scanner.Err(); err != nil {
		return docs, fmt.Errorf("failed to read source documents: %w", err)
	}
	return docs, nil
}

func writeSplit(path string, examples []corpus.Example) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, e := range examples {
		if err := encoder.Encode(e); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
