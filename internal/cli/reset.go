package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ALT-F4-LLC/lp2jira/internal/fragment"
	"github.com/ALT-F4-LLC/lp2jira/internal/output"
)

type resetResult struct {
	Users   int `json:"users"`
	Issues  int `json:"issues"`
	Updates int `json:"updates"`
}

var resetKinds = map[string]fragment.Kind{
	"users":   fragment.KindUser,
	"issues":  fragment.KindIssue,
	"updates": fragment.KindUpdate,
}

// resetSelection resolves the --only values into fragment kinds.
func resetSelection(only []string) ([]fragment.Kind, error) {
	if len(only) == 0 {
		return []fragment.Kind{fragment.KindUser, fragment.KindIssue, fragment.KindUpdate}, nil
	}
	var kinds []fragment.Kind
	seen := make(map[fragment.Kind]bool)
	for _, name := range only {
		kind, ok := resetKinds[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("invalid fragment kind %q: must be one of users, issues, updates", name)
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete exported fragments so the next run starts over",
	Long: `Reset removes fragment files from the working directories. Fragments are
never overwritten by an export, so resetting is how an entity gets exported
again. Compiled bundles and the run ledger are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := getWriter(cmd)
		cfg := getCfg(cmd)
		logger := getLogger(cmd)

		only, _ := cmd.Flags().GetStringSlice("only")
		kinds, err := resetSelection(only)
		if err != nil {
			return cmdErr(err, output.ErrValidation)
		}

		store := newStore(cfg)
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			if w.JSONMode || !term.IsTerminal(int(os.Stdin.Fd())) {
				return cmdErr(errors.New("refusing to delete fragments without confirmation: use --yes"), output.ErrValidation)
			}

			dirs := make([]string, len(kinds))
			for i, k := range kinds {
				dirs[i] = store.Dir(k)
			}
			var confirmed bool
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title("Delete all fragments in " + strings.Join(dirs, ", ") + "?").
						Affirmative("Delete").
						Negative("Cancel").
						Value(&confirmed),
				),
			)
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					w.Info("Cancelled.")
					return nil
				}
				return cmdErr(fmt.Errorf("interactive form failed: %w", err), output.ErrGeneral)
			}
			if !confirmed {
				w.Info("Cancelled.")
				return nil
			}
		}

		var res resetResult
		for _, kind := range kinds {
			n, err := store.Remove(kind)
			if err != nil {
				return cmdErr(fmt.Errorf("removing %s fragments: %w", kind, err), output.ErrGeneral)
			}
			logger.Info("fragments removed", "kind", kind, "count", n)
			switch kind {
			case fragment.KindUser:
				res.Users = n
			case fragment.KindIssue:
				res.Issues = n
			case fragment.KindUpdate:
				res.Updates = n
			}
		}

		w.Success(res, fmt.Sprintf("Removed %d user, %d issue and %d update fragment(s)", res.Users, res.Issues, res.Updates))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Delete without asking for confirmation")
	resetCmd.Flags().StringSlice("only", nil, "Fragment kinds to delete: users, issues, updates (default all)")
	rootCmd.AddCommand(resetCmd)
}
