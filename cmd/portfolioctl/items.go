package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newItemsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item"},
		Short:   "Manage portfolio items",
	}
	cmd.AddCommand(
		newItemsListCmd(c),
		newItemsGetCmd(c),
		newItemsCreateCmd(c),
		newItemsUpdateCmd(c),
		newItemsDeleteCmd(c),
		newItemsUploadImageCmd(c),
		newItemsRemoveImageCmd(c),
		newItemsEligibilityCmd(c),
	)
	return cmd
}

func newItemsListCmd(c *cli) *cobra.Command {
	var stream string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items of a stream, or all items with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			path := portfolioAPI + "/items?stream=" + url.QueryEscape(stream)
			if all {
				path = portfolioAPI + "/admin/items"
			} else if stream == "" {
				return fmt.Errorf("--stream is required unless --all is set")
			}

			var list itemList
			if err := c.client().getJSON(path, &list); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), list, func(w io.Writer) {
				rows := make([][]string, len(list.Items))
				for i, it := range list.Items {
					rows[i] = []string{it.ID, truncate(it.Title, 40), it.Stream, it.State, formatRating(it.Rating, it.ReviewCount)}
				}
				printTable(w, []string{"id", "title", "stream", "state", "rating"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "", "Stream to list")
	cmd.Flags().Bool("all", false, "List every item across streams (administrators)")
	return cmd
}

func newItemsGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <item-id>",
		Short: "Show an item with its reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail itemDetail
			if err := c.client().getJSON(portfolioAPI+"/items/"+url.PathEscape(args[0]), &detail); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), detail, func(w io.Writer) {
				rows := [][]string{
					{"ID", detail.ID},
					{"Title", detail.Title},
					{"Stream", detail.Stream},
					{"State", detail.State},
					{"Image", detail.Image},
					{"Rating", formatRating(detail.Rating, detail.ReviewCount)},
				}
				printTable(w, []string{"field", "value"}, rows)
				if len(detail.Reviews) == 0 {
					return
				}
				fmt.Fprintln(w)
				reviewRows := make([][]string, len(detail.Reviews))
				for i, r := range detail.Reviews {
					reviewRows[i] = []string{r.ID, r.ReviewerName, fmt.Sprint(r.Rating), truncate(r.Comment, 50)}
				}
				printTable(w, []string{"review", "reviewer", "rating", "comment"}, reviewRows)
			})
		},
	}
}

type itemFlags struct {
	title            string
	category         string
	stream           string
	shortDescription string
	longDescription  string
	serviceType      string
	eligibleEmails   []string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Item title")
	cmd.Flags().StringVar(&f.category, "category", "", "Category")
	cmd.Flags().StringVar(&f.stream, "stream", "", "Business stream")
	cmd.Flags().StringVar(&f.shortDescription, "short-description", "", "Short description")
	cmd.Flags().StringVar(&f.longDescription, "long-description", "", "Long description")
	cmd.Flags().StringVar(&f.serviceType, "service-type", "", "Service type")
	cmd.Flags().StringSliceVar(&f.eligibleEmails, "eligible-email", nil, "Email allowed to review (repeatable)")
}

// body returns the JSON fields whose flags were set.
func (f *itemFlags) body(cmd *cobra.Command) map[string]any {
	body := map[string]any{}
	set := func(flag, key string, v any) {
		if cmd.Flags().Changed(flag) {
			body[key] = v
		}
	}
	set("title", "title", f.title)
	set("category", "category", f.category)
	set("stream", "stream", f.stream)
	set("short-description", "shortDescription", f.shortDescription)
	set("long-description", "longDescription", f.longDescription)
	set("service-type", "serviceType", f.serviceType)
	set("eligible-email", "eligibleEmails", f.eligibleEmails)
	return body
}

func newItemsCreateCmd(c *cli) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft item",
		RunE: func(cmd *cobra.Command, args []string) error {
			var created map[string]string
			if err := c.client().sendJSON(http.MethodPost, portfolioAPI+"/admin/items", f.body(cmd), &created); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), created, func(w io.Writer) {
				fmt.Fprintf(w, "Created item %s (%s)\n", created["id"], created["state"])
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("stream")
	return cmd
}

func newItemsUpdateCmd(c *cli) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Update item fields; only the flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detail itemDetail
			err := c.client().sendJSON(http.MethodPatch, portfolioAPI+"/admin/items/"+url.PathEscape(args[0]), f.body(cmd), &detail)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), detail, func(w io.Writer) {
				fmt.Fprintf(w, "Updated item %s\n", detail.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newItemsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item, its reviews and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Deleted string        `json:"deleted"`
				Cleanup cleanupResult `json:"cleanup"`
			}
			if err := c.client().sendJSON(http.MethodDelete, portfolioAPI+"/admin/items/"+url.PathEscape(args[0]), nil, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted item %s\n", result.Deleted)
				printCleanup(w, result.Cleanup)
			})
		},
	}
}

func newItemsUploadImageCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-image <item-id> <file>",
		Short: "Upload an image and publish the item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			var result imageResult
			path := portfolioAPI + "/admin/items/" + url.PathEscape(args[0]) + "/image"
			if err := c.client().uploadFile(http.MethodPut, path, args[1], data, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Image set to %s (%s)\n", result.Image, result.State)
				printCleanup(w, result.Cleanup)
			})
		},
	}
}

func newItemsRemoveImageCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-image <item-id>",
		Short: "Remove the item's image and return it to draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				State   string        `json:"state"`
				Cleanup cleanupResult `json:"cleanup"`
			}
			path := portfolioAPI + "/admin/items/" + url.PathEscape(args[0]) + "/image"
			if err := c.client().sendJSON(http.MethodDelete, path, nil, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Image removed, item is %s\n", result.State)
				printCleanup(w, result.Cleanup)
			})
		},
	}
}

func newItemsEligibilityCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility <item-id> <email>",
		Short: "Check whether an email may review an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result eligibility
			path := portfolioAPI + "/admin/items/" + url.PathEscape(args[0]) + "/eligibility?email=" + url.QueryEscape(args[1])
			if err := c.client().getJSON(path, &result); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), c.output(), result, func(w io.Writer) {
				printTable(w, []string{"email", "listed", "reviewed", "can review"}, [][]string{{
					result.Email, fmt.Sprint(result.Listed), fmt.Sprint(result.AlreadyReviewed), fmt.Sprint(result.CanReview),
				}})
			})
		},
	}
}

func printCleanup(w io.Writer, r cleanupResult) {
	if !r.Attempted || !r.Failed {
		return
	}
	msg := fmt.Sprintf("Warning: asset %s was not deleted: %s", r.AssetRef, r.Error)
	if r.RetryQueued {
		msg += fmt.Sprintf(" (retry job %s)", r.RetryJobID)
	}
	fmt.Fprintln(w, strings.TrimSpace(msg))
}
