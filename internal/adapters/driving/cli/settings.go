package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, pipeline tuning and storage.

Every setting can also be overridden for one run with an environment
variable, for example QUERYNEST_LLM_API_KEY or QUERYNEST_RETRIEVAL_TOP_K.`,
	Annotations: map[string]string{annotationSettingsOnly: "true"},
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by key. Run 'querynest settings keys' for the list.

Examples:
  querynest settings set retrieval.top_k 8
  querynest settings set validation.threshold 0.6
  querynest settings set storage.backend memory`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure both AI providers step by step.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for indexing, retrieval and validation.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used to generate answers and summaries.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func requireSettings() error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return nil
}

// settingsGroup is one titled block of settings output.
type settingsGroup struct {
	Title  string
	Values [][2]string
}

func settingsGroups(st *domain.AppSettings) []settingsGroup {
	itoa := strconv.Itoa
	ftoa := func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
	key := func(k string) string {
		if k == "" {
			return "(not set)"
		}
		return maskAPIKey(k)
	}

	return []settingsGroup{
		{"embedding", [][2]string{
			{"provider", string(st.Embedding.Provider)},
			{"model", st.Embedding.Model},
			{"base_url", st.Embedding.BaseURL},
			{"api_key", key(st.Embedding.APIKey)},
			{"dimensions", itoa(st.Embedding.Dimensions)},
		}},
		{"llm", [][2]string{
			{"provider", string(st.LLM.Provider)},
			{"model", st.LLM.Model},
			{"base_url", st.LLM.BaseURL},
			{"api_key", key(st.LLM.APIKey)},
		}},
		{"capabilities", [][2]string{
			{"embed_timeout_secs", ftoa(st.Capabilities.EmbedTimeout.Seconds())},
			{"generate_timeout_secs", ftoa(st.Capabilities.GenerateTimeout.Seconds())},
		}},
		{"sections", [][2]string{
			{"max_heading_chars", itoa(st.Sections.MaxHeadingChars)},
			{"max_heading_words", itoa(st.Sections.MaxHeadingWords)},
		}},
		{"chunker", [][2]string{
			{"chunk_tokens", itoa(st.Chunker.ChunkTokens)},
			{"overlap_fraction", ftoa(st.Chunker.OverlapFraction)},
			{"slack_tokens", itoa(st.Chunker.SlackTokens)},
		}},
		{"indexing", [][2]string{
			{"concurrency", itoa(st.Indexing.Concurrency)},
			{"batch_size", itoa(st.Indexing.BatchSize)},
			{"rate_limit", ftoa(st.Indexing.RateLimit)},
		}},
		{"retrieval", [][2]string{
			{"top_k", itoa(st.Retrieval.TopK)},
			{"topic_top_k", itoa(st.Retrieval.TopicTopK)},
		}},
		{"synthesis", [][2]string{
			{"max_context_chars", itoa(st.Synthesis.MaxContextChars)},
			{"max_input_chars", itoa(st.Synthesis.MaxInputChars)},
			{"answer_max_tokens", itoa(st.Synthesis.AnswerMaxTokens)},
			{"summary_max_tokens", itoa(st.Synthesis.SummaryMaxTokens)},
		}},
		{"validation", [][2]string{
			{"threshold", ftoa(st.Validation.Threshold)},
			{"high_confidence", ftoa(st.Validation.HighConfidence)},
			{"factual_weight", ftoa(st.Validation.FactualWeight)},
			{"claim_support", ftoa(st.Validation.ClaimSupport)},
		}},
		{"storage", [][2]string{
			{"backend", string(st.Storage.Backend)},
			{"data_dir", st.Storage.DataDir},
		}},
	}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	groups := settingsGroups(settings)

	structured := make(map[string]map[string]string, len(groups))
	for _, g := range groups {
		values := make(map[string]string, len(g.Values))
		for _, kv := range g.Values {
			values[kv[0]] = kv[1]
		}
		structured[g.Title] = values
	}
	if done, err := writeStructured(cmd.OutOrStdout(), structured); done {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	for _, g := range groups {
		cmd.Printf("[%s]\n", g.Title)
		for _, kv := range g.Values {
			cmd.Printf("  %s: %s\n", kv[0], kv[1])
		}
		cmd.Println()
	}

	cmd.Printf("Embedding: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("LLM:       %s\n", settings.LLM.Provider.Description())

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'querynest settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}

	value := args[1]
	if strings.HasSuffix(args[0], "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", args[0], value)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	keys := settingsService.Keys()
	if done, err := writeStructured(cmd.OutOrStdout(), keys); done {
		return err
	}
	for _, k := range keys {
		cmd.Println(k)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	cmd.Println("QueryNest Settings Wizard")
	cmd.Println("=========================")
	cmd.Println()

	reader := bufio.NewReader(os.Stdin)

	cmd.Println("Step 1: Configure Embedding Provider")
	cmd.Println("------------------------------------")
	cmd.Println("Embeddings power indexing, retrieval and answer validation.")
	cmd.Println()
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Step 2: Configure LLM Provider")
	cmd.Println("------------------------------")
	cmd.Println("The LLM writes answers and summaries. The built-in provider extracts sentences instead.")
	cmd.Println()
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}
	cmd.Println("Documents indexed with a different embedding model need 'querynest documents reindex'.")

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if err := requireSettings(); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	return configureLLMProvider(cmd, reader)
}

// providerChoice prompts for a provider, model and API key.
func providerChoice(
	cmd *cobra.Command,
	reader *bufio.Reader,
	title string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) (domain.AIProvider, string, string, error) {
	cmd.Println(title)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword()
		cmd.Println()
		if apiKey == "" {
			return "", "", "", errors.New("API key is required for this provider")
		}
	}
	return selected, model, apiKey, nil
}

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	provider, model, apiKey, err := providerChoice(cmd, reader, "Select Embedding Provider",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	provider, model, apiKey, err := providerChoice(cmd, reader, "Select LLM Provider",
		domain.AllLLMProviders(), domain.DefaultLLMModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetLLMProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
