package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aura-rag/internal/assistant"
	"aura-rag/internal/config"
	"aura-rag/internal/embedding"
	"aura-rag/internal/helper"
	"aura-rag/internal/llmservice"
	"aura-rag/internal/rag"
)

var (
	searchLimit int
	searchTable string
	searchJSON  bool

	askAgent   string
	askUser    string
	askSession string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the chunk store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.RequireEmbeddingKey, config.RequireDatabaseURL)
		if err != nil {
			return err
		}
		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return err
		}

		table := cfg.RAG.TableName
		if searchTable != "" {
			table = searchTable
		}
		store, closeStore, err := openStore(cmd.Context(), cfg, table)
		if err != nil {
			return err
		}
		defer closeStore()

		k := searchLimit
		if k <= 0 {
			k = cfg.RAG.TopK
		}
		results, err := rag.NewRetriever(queryEmbedder(cfg, e), store, nil, k).Search(cmd.Context(), args[0], k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if searchJSON {
			return helper.PrettyPrint(cmd.OutOrStdout(), results)
		}
		if len(results) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		rag.PrintResults(cmd.OutOrStdout(), args[0], results)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the textbooks, or through one of the assistant agents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.RequireEmbeddingKey, config.RequireChatKey, config.RequireDatabaseURL)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		e, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return err
		}
		qe := queryEmbedder(cfg, e)
		chat, err := llmservice.NewClient(&cfg.ChatLLM)
		if err != nil {
			return err
		}

		books, closeBooks, err := openStore(ctx, cfg, cfg.RAG.TableName)
		if err != nil {
			return err
		}
		defer closeBooks()
		textbooks := rag.NewRetriever(qe, books, chat, cfg.RAG.TopK)

		if askAgent == "" {
			resp, err := textbooks.Answer(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Println(resp.Content)
			if resp.Source != "" {
				cmd.Printf("\nSources: %s\n", resp.Source)
			}
			return nil
		}

		agent, err := assistant.LookupAgent(askAgent)
		if err != nil {
			return err
		}
		conversations, closeConversations, err := openStore(ctx, cfg, cfg.RAG.ConversationTable)
		if err != nil {
			return err
		}
		defer closeConversations()
		summaries, closeSummaries, err := openSummaries(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSummaries()

		tb := &assistant.Toolbox{
			Conversations: rag.NewRetriever(qe, conversations, nil, assistant.SearchK),
			Textbooks:     textbooks,
			Calendar:      assistant.NewCalendarClient(cfg.Calendar),
		}
		if summaries != nil {
			tb.Summaries = summaries
		}

		session := askSession
		if session == "" {
			if session, err = helper.GenerateUUID(); err != nil {
				return err
			}
		}
		message := fmt.Sprintf("[user_id=%s session_id=%s]\n%s", askUser, session, args[0])

		reply, _, err := assistant.NewRunner(chat, tb).Turn(ctx, agent, nil, message)
		if err != nil {
			return err
		}
		cmd.Println(reply)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default rag.top_k)")
	searchCmd.Flags().StringVar(&searchTable, "table", "", "table or collection to search (default rag.table_name)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")

	askCmd.Flags().StringVar(&askAgent, "agent", "", "assistant agent to run the question through")
	askCmd.Flags().StringVar(&askUser, "user", "anonymous", "user id passed to the agent")
	askCmd.Flags().StringVar(&askSession, "session", "", "session id passed to the agent (default: random)")

	rootCmd.AddCommand(searchCmd, askCmd)
}
