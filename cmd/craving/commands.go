package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/craving/internal/mcp"
	"github.com/hurttlocker/craving/internal/recommend"
)

func newChatCmd(flags *globalFlags, logger func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat about cravings on stdin",
		Long: `Reads one message per line from stdin and answers each turn, asking
follow-up questions until the craving is complete. Type "quit" to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			uc, err := flags.userContext()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, flags, logger())
			if err != nil {
				return err
			}
			defer a.Close()

			sweepCtx, cancel := context.WithCancel(ctx)
			done := a.sweep(sweepCtx)
			defer func() {
				cancel()
				<-done
			}()

			return chatLoop(ctx, a, flags.user, uc, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func chatLoop(ctx context.Context, a *app, user string, uc recommend.UserContext, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "quit", "exit":
			return nil
		}

		reply, err := a.assistant.Respond(ctx, line, uc, user)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Sorry, I can't make a safe recommendation right now (%v).\n> ", err)
			continue
		}
		fmt.Fprintf(out, "%s\n> ", reply.Text)
	}
	return scanner.Err()
}

func newInterpretCmd(flags *globalFlags, logger func() *zap.Logger) *cobra.Command {
	var respond bool
	cmd := &cobra.Command{
		Use:   "interpret <utterance>",
		Short: "Interpret one message and print the result as JSON",
		Long: `Interprets a single message. With --respond the craving is also scored
and the recommendation is included. Use --db to keep follow-up state
between invocations.`,
		Example: `  craving interpret "something sweet but not chocolate for dessert"
  craving interpret --respond --glucose 165 --trend rising "pasta for dinner"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uc, err := flags.userContext()
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, flags, logger())
			if err != nil {
				return err
			}
			defer a.Close()

			utterance := strings.Join(args, " ")
			var v any
			if respond {
				v, err = a.assistant.Respond(ctx, utterance, uc, flags.user)
			} else {
				v, err = a.assistant.Interpret(ctx, utterance, uc, flags.user)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().BoolVar(&respond, "respond", false, "also recommend a food once the craving is complete")
	return cmd
}

func newCatalogCmd(flags *globalFlags, logger func() *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the food catalog",
	}

	var strict bool
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and report validation issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			c, err := loadCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			vocab := c.Vocabulary()
			out := cmd.OutOrStdout()
			source := cfg.CatalogPath.Value
			if source == "" {
				source = "built-in"
			}
			fmt.Fprintf(out, "Catalog:    %s\n", source)
			fmt.Fprintf(out, "Foods:      %d\n", c.Len())
			fmt.Fprintf(out, "Categories: %d\n", len(vocab.Categories))
			fmt.Fprintf(out, "Meal types: %d\n", len(vocab.MealTypes))

			issues := c.Issues()
			fmt.Fprintf(out, "Issues:     %d\n", len(issues))
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			if strict && len(issues) > 0 {
				return fmt.Errorf("catalog has %d issue(s)", len(issues))
			}
			logger().Debug("catalog validated", zap.Int("foods", c.Len()), zap.Int("issues", len(issues)))
			return nil
		},
	}
	validate.Flags().BoolVar(&strict, "strict", false, "fail when any food has a validation issue")

	cmd.AddCommand(validate)
	return cmd
}

func newMCPCmd(flags *globalFlags, logger func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the craving tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, flags, logger())
			if err != nil {
				return err
			}
			defer a.Close()

			sweepCtx, cancel := context.WithCancel(ctx)
			done := a.sweep(sweepCtx)
			defer func() {
				cancel()
				<-done
			}()

			s := mcp.NewServer(mcp.ServerConfig{
				Assistant: a.assistant,
				Version:   version,
				Logger:    logger().Named("mcp"),
			})
			return mcp.Serve(s)
		},
	}
}
