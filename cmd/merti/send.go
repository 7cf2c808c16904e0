// ABOUTME: One-shot commands: send, upload, scrape and preview
// ABOUTME: Each runs a single webhook or scraper call and prints the result

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/merti-gateway/internal/scraper"
	"github.com/2389/merti-gateway/internal/webhook"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <text>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := currentSettings()
			if err != nil {
				return err
			}
			if s.ChatURL == "" {
				return errNoChatURL
			}
			client := newClient(s)
			resp, err := client.SendText(cmd.Context(), client.NewSession(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Send an image, optionally with a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := currentSettings()
			if err != nil {
				return err
			}
			if s.ChatURL == "" {
				return errNoChatURL
			}
			img, err := readImageFile(args[0])
			if err != nil {
				return err
			}
			p, err := webhook.NewPayload(text, img)
			if err != nil {
				return err
			}
			client := newClient(s)
			resp, err := client.Send(cmd.Context(), client.NewSession(), p)
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "question to send with the image")
	return cmd
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Ask the scrape webhook to ingest a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scraper.ValidateURL(args[0]); err != nil {
				return err
			}
			s, err := currentSettings()
			if err != nil {
				return err
			}
			if s.ScrapeURL == "" {
				return errNoScrapeURL
			}
			client := newClient(s)
			resp, err := client.Scrape(cmd.Context(), webhook.NewSession(nil), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <url>",
		Short: "Fetch a page through the proxy chain and show what would be extracted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := currentSettings()
			if err != nil {
				return err
			}
			res, err := newScraper(s.Scraper).Scrape(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printPreview(w io.Writer, res *scraper.Result) {
	fmt.Fprintln(w, headerStyle.Render(res.Title))
	fmt.Fprintln(w, dimStyle.Render(res.MainURL))
	fmt.Fprintln(w)
	fmt.Fprintln(w, res.Content)

	if len(res.Files) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Files (%d)", len(res.Files))))
		for _, f := range res.Files {
			fmt.Fprintf(w, "  %s %s\n", fileStyle.Render(strings.ToUpper(string(f.FileType))), f.URL)
		}
	}

	if len(res.Links) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Links (%d)", len(res.Links))))
		for _, l := range res.Links {
			fmt.Fprintf(w, "  %s %s\n", l.Title, linkStyle.Render(l.URL))
		}
	}
}
