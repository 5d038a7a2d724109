package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/simple-todo-server/model"
	"github.com/stevemurr/simple-todo-server/repository"
)

// withRepository opens the store for the duration of fn.
func (a *app) withRepository(cmd *cobra.Command, fn func(context.Context, *repository.Repository) error) error {
	ctx := cmd.Context()
	repo, s, err := a.openRepository(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, repo)
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [content...]",
		Short: "Create a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				item, err := repo.Create(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", item.ID, item.Content)
				return nil
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var (
		page, limit int
		query       string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List todos, most recent first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 0 || limit < 0 {
				return errors.New("--page and --limit must not be negative")
			}
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				p, err := repo.List(ctx, page, limit)
				if err != nil {
					return err
				}
				p.Items = repository.FilterByContent(query, p.Items)
				printPage(cmd.OutOrStdout(), p, max(page, 1))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "page size (0 uses the configured default)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show todos whose content contains this text")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				item, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), []model.Item{item})
				return nil
			})
		},
	}
}

func (a *app) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip the done flag of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				item, err := repo.ToggleDone(ctx, args[0])
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), []model.Item{item})
				return nil
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var (
		content string
		done    bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the content or done flag of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch model.Patch
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("done") {
				patch.Done = &done
			}
			if patch.Empty() {
				return errors.New("nothing to update: pass --content and/or --done")
			}
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				item, err := repo.UpdateByID(ctx, args[0], patch)
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), []model.Item{item})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().BoolVar(&done, "done", false, "new done flag")
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Short:   "Delete a todo",
		Aliases: []string{"delete"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				if err := repo.DeleteByID(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "DANGER: delete every todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return a.withRepository(cmd, func(ctx context.Context, repo *repository.Repository) error {
				if err := repo.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared all todos")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of every todo")
	return cmd
}

func printPage(w io.Writer, p model.Page, page int) {
	if p.Total == 0 {
		fmt.Fprintln(w, "No todos.")
		return
	}
	printItems(w, p.Items)
	fmt.Fprintf(w, "page %d/%d, %d total\n", page, p.Pages, p.Total)
}

func printItems(w io.Writer, items []model.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		mark := " "
		if it.Done {
			mark = "x"
		}
		fmt.Fprintf(tw, "[%s]\t%s\t%s\t%s\n", mark, it.ID, it.CreatedAt.Local().Format(time.DateTime), it.Content)
	}
	tw.Flush()
}
