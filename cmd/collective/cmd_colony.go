package main

import (
	"context"
	"fmt"
	"strings"

	"collective/internal/colony"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var (
	statusLogs int

	proposeType   string
	proposeRole   string
	proposeConfig string
	policyName    string
	policyValue   float64
)

// statusCmd prints the saved colony
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved colony",
	RunE:  runStatus,
}

// proposeCmd submits proposals to the saved colony
var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Submit a proposal for the collective to vote on",
	Long: `Proposals are resolved by agent votes on subsequent ticks. Use step or run
to let the collective deliberate.`,
}

var proposeSpawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Propose spawning a new agent",
	Long: `Agent types: Researcher, Engineer, Analyst, Strategist, Ethicist.

Example:
  collective propose spawn --type Analyst --role Sentinel --config '{"focus":"supply chain"}'`,
	RunE: runProposeSpawn,
}

var proposePolicyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Propose a policy change",
	Long: `Policies: min_pas, max_agents, approval_threshold.

Example:
  collective propose policy --name approval_threshold --value 0.66`,
	RunE: runProposePolicy,
}

// chatCmd relays one message
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the collective and print its reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

// foresightCmd renders a foresight video
var foresightCmd = &cobra.Command{
	Use:   "foresight",
	Short: "Generate a foresight video of the colony",
	RunE:  runForesight,
}

func init() {
	statusCmd.Flags().IntVar(&statusLogs, "logs", 10, "Number of recent log lines to show")

	proposeSpawnCmd.Flags().StringVar(&proposeType, "type", "", "Agent type (required)")
	proposeSpawnCmd.Flags().StringVar(&proposeRole, "role", "", "Agent role (required)")
	proposeSpawnCmd.Flags().StringVar(&proposeConfig, "config", "{}", "Agent config as a JSON object")
	proposeSpawnCmd.MarkFlagRequired("type")
	proposeSpawnCmd.MarkFlagRequired("role")

	proposePolicyCmd.Flags().StringVar(&policyName, "name", "", "Policy name (required)")
	proposePolicyCmd.Flags().Float64Var(&policyValue, "value", 0, "New value (required)")
	proposePolicyCmd.MarkFlagRequired("name")
	proposePolicyCmd.MarkFlagRequired("value")

	proposeCmd.AddCommand(proposeSpawnCmd)
	proposeCmd.AddCommand(proposePolicyCmd)
}

// withColony opens the saved colony, runs fn and saves if fn succeeds.
func withColony(save bool, fn func(ctx context.Context, col *instance) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	col, err := openColony(ctx, cfg)
	if err != nil {
		return err
	}
	if err := fn(ctx, col); err != nil {
		_ = col.close(ctx, false)
		return err
	}
	return col.close(ctx, save)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withColony(false, func(ctx context.Context, col *instance) error {
		fmt.Fprint(cmd.OutOrStdout(), renderStatus(col.kernel.Snapshot(), statusLogs))
		return nil
	})
}

func runProposeSpawn(cmd *cobra.Command, args []string) error {
	return withColony(true, func(ctx context.Context, col *instance) error {
		p, err := col.kernel.ProposeSpawnAgent(colony.AgentType(proposeType), proposeRole, proposeConfig)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Proposal %s submitted: %s\n", p.ID, p.Action.Describe())
		return nil
	})
}

func runProposePolicy(cmd *cobra.Command, args []string) error {
	return withColony(true, func(ctx context.Context, col *instance) error {
		p, err := col.kernel.ProposePolicyChange("", policyName, policyValue)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Proposal %s submitted: %s\n", p.ID, p.Action.Describe())
		return nil
	})
}

func runChat(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	return withColony(true, func(ctx context.Context, col *instance) error {
		before := col.kernel.Snapshot().Counters.NextMessageID
		if err := col.kernel.HandleUserMessage(ctx, message); err != nil {
			return err
		}
		// Messages are newest first; print the replies oldest first.
		msgs := col.kernel.Snapshot().State.Messages
		var replies []colony.ChatMessage
		for _, m := range msgs {
			if m.ID <= before {
				break
			}
			replies = append([]colony.ChatMessage{m}, replies...)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderReplies(replies))
		return nil
	})
}

func runForesight(cmd *cobra.Command, args []string) error {
	return withColony(true, func(ctx context.Context, col *instance) error {
		if err := col.kernel.GenerateForesight(ctx); err != nil {
			return err
		}
		f := col.kernel.Snapshot().State.Foresight
		if f.Error != "" {
			return fmt.Errorf("foresight failed: %s", f.Error)
		}
		fmt.Fprintln(cmd.OutOrStdout(), f.VideoURI)
		return nil
	})
}

// renderReplies formats chat replies as markdown and renders them for the
// terminal, falling back to plain text.
func renderReplies(replies []colony.ChatMessage) string {
	var md strings.Builder
	for _, m := range replies {
		fmt.Fprintf(&md, "**%s**\n\n%s\n\n", m.Sender, m.Message)
		for _, src := range m.Sources {
			fmt.Fprintf(&md, "- [%s](%s)\n", src.Title, src.URI)
		}
		if len(m.Sources) > 0 {
			md.WriteString("\n")
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return md.String()
	}
	out, err := renderer.Render(md.String())
	if err != nil {
		return md.String()
	}
	return out
}
