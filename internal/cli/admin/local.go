package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloo-solutions/studyrag/internal/config"
	"github.com/cloo-solutions/studyrag/internal/domain"
	"github.com/cloo-solutions/studyrag/internal/openai"
	"github.com/cloo-solutions/studyrag/internal/pdf"
	"github.com/cloo-solutions/studyrag/internal/service"
	"github.com/spf13/cobra"
)

// localSourceID tags chunks of a file read from disk.
const localSourceID = "local"

// InspectReport summarizes how the pipeline sees a PDF.
type InspectReport struct {
	File        string       `json:"file"`
	TotalPages  int          `json:"total_pages"`
	UsablePages []int        `json:"usable_pages"`
	Chunks      int          `json:"chunks"`
	Samples     []ChunkBrief `json:"samples,omitempty"`
}

type ChunkBrief struct {
	Page    int     `json:"page"`
	Score   float64 `json:"score,omitempty"`
	Preview string  `json:"preview"`
}

// AskReport is the outcome of a local question.
type AskReport struct {
	Question  string            `json:"question"`
	Evidence  []ChunkBrief      `json:"evidence"`
	Answer    string            `json:"answer,omitempty"`
	Citations []domain.Citation `json:"citations,omitempty"`
}

// InspectCmd returns the inspect command
func InspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspect FILE",
		Short:   "Clean and chunk a PDF locally",
		Long:    "Run extraction, cleaning and chunking on a PDF without a database and print what would be indexed",
		Example: "studyd inspect biology.pdf --samples 3",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := localPipeline(cmd)
			if err != nil {
				return err
			}
			pages, err := pdf.NewExtractor().ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			samples, _ := cmd.Flags().GetInt("samples")
			report := inspectPages(pipeline, pages, samples)
			report.File = args[0]
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().Int("samples", 3, "Number of chunk previews to print")
	addPolicyFlag(cmd)

	return cmd
}

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask FILE QUESTION",
		Short: "Ask a question about a PDF locally",
		Long: `Rank the chunks of a PDF against a question and, when a model API key is
set in STUDY_OPENAI_API_KEY or OPENAI_API_KEY, answer it with citations.`,
		Example: `studyd ask biology.pdf "What does ATP do?"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := localPipeline(cmd)
			if err != nil {
				return err
			}
			pages, err := pdf.NewExtractor().ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var model service.LanguageModel
			if noModel, _ := cmd.Flags().GetBool("no-model"); !noModel {
				if client := localModel(); client != nil {
					model = client
				}
			}

			topK, _ := cmd.Flags().GetInt("top-k")
			report, err := askPages(cmd.Context(), pipeline, model, pages, args[1], topK)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().IntP("top-k", "k", 0, "Evidence chunks to use (0 uses the configured default)")
	cmd.Flags().Bool("no-model", false, "Only rank evidence, never call the model")
	addPolicyFlag(cmd)

	return cmd
}

// GradeCmd returns the grade command
func GradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "grade",
		Short:   "Grade a free-text answer against a reference",
		Example: `studyd grade --answer "the powerhouse of the cell" --correct "Mitochondria produce ATP"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := localPipeline(cmd)
			if err != nil {
				return err
			}
			answer, _ := cmd.Flags().GetString("answer")
			correct, _ := cmd.Flags().GetString("correct")
			explanation, _ := cmd.Flags().GetString("explanation")

			eval := pipeline.Grader.Evaluate(answer, correct, explanation)
			return writeJSON(cmd.OutOrStdout(), eval)
		},
	}

	cmd.Flags().String("answer", "", "The student's answer")
	cmd.Flags().String("correct", "", "The reference answer")
	cmd.Flags().String("explanation", "", "Optional explanation that also counts as reference text")
	_ = cmd.MarkFlagRequired("correct")
	addPolicyFlag(cmd)

	return cmd
}

func addPolicyFlag(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "YAML policy file overriding the pipeline pattern lists")
}

func localPipeline(cmd *cobra.Command) (*service.Pipeline, error) {
	cfg := service.DefaultPipelineConfig()
	if path, _ := cmd.Flags().GetString("policy"); path != "" {
		policy, err := config.LoadPolicy(path)
		if err != nil {
			return nil, err
		}
		policy.Apply(&cfg)
	}
	return service.NewPipeline(cfg)
}

func localModel() *openai.Client {
	if key := os.Getenv("STUDY_OPENAI_API_KEY"); key != "" {
		return openai.NewClientWithConfig(openai.Config{
			APIKey:        key,
			BaseURL:       os.Getenv("STUDY_OPENAI_BASE_URL"),
			Model:         os.Getenv("STUDY_AI_MODEL"),
			FallbackModel: os.Getenv("STUDY_AI_FALLBACK_MODEL"),
		})
	}
	client, err := openai.NewClientFromEnv()
	if err != nil {
		return nil
	}
	return client
}

func inspectPages(pipeline *service.Pipeline, pages []domain.RawPage, samples int) InspectReport {
	cleaned := pipeline.Cleaner.CleanPages(pages)
	chunks := service.ChunkPages(cleaned, localSourceID, pipeline.Chunk)

	report := InspectReport{
		TotalPages:  len(pages),
		UsablePages: make([]int, len(cleaned)),
		Chunks:      len(chunks),
	}
	for i, p := range cleaned {
		report.UsablePages[i] = p.Number
	}
	for i := 0; i < len(chunks) && i < samples; i++ {
		report.Samples = append(report.Samples, ChunkBrief{Page: chunks[i].Page, Preview: preview(chunks[i].Content)})
	}
	return report
}

// askPages ranks the cleaned pages against question. A nil model skips
// answer generation.
func askPages(ctx context.Context, pipeline *service.Pipeline, model service.LanguageModel, pages []domain.RawPage, question string, topK int) (*AskReport, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question", domain.ErrMissingRequiredField)
	}

	cleaned := pipeline.Cleaner.CleanPages(pages)
	if len(cleaned) == 0 {
		return nil, domain.ErrExtractionEmpty
	}
	chunks := service.ChunkPages(cleaned, localSourceID, pipeline.Chunk)

	scored := pipeline.Ranker.RankScored(question, chunks, topK)
	if len(scored) == 0 {
		return nil, domain.ErrNoEvidenceFound
	}

	report := &AskReport{Question: question}
	evidence := make([]domain.Chunk, len(scored))
	for i, sc := range scored {
		evidence[i] = sc.Chunk
		report.Evidence = append(report.Evidence, ChunkBrief{Page: sc.Page, Score: sc.Score, Preview: preview(sc.Content)})
	}

	if model == nil {
		return report, nil
	}
	answer, citations, err := service.AnswerFromEvidence(ctx, model, question, evidence, nil, 0)
	if err != nil {
		return nil, err
	}
	report.Answer = answer
	report.Citations = citations
	return report, nil
}

func preview(s string) string {
	const limit = 160
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
