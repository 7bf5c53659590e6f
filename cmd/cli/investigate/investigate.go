// Package investigate holds the CLI commands that drive the doppel HTTP API.
package investigate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/myrjola/doppel/internal/models"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "investigate",
	Title: "Investigation operations",
}

const pollInterval = 2 * time.Second

func init() {
	Start.Flags().String("server", "http://localhost:4000", "doppel server base URL")
	Start.Flags().String("context", "", "disambiguating context for the target")
	Start.Flags().Bool("quick", false, "skip identity confirmation")
	Start.Flags().Bool("deep", false, "use the deep sequential scraping pipeline")
	Start.Flags().Bool("watch", false, "poll status until the investigation finishes")

	Confirm.Flags().String("server", "http://localhost:4000", "doppel server base URL")
	Confirm.Flags().String("candidate", "", "id of the candidate to confirm")
	Confirm.Flags().String("context", "", "additional context for re-resolution")
	Confirm.Flags().Bool("deny", false, "reject all candidates")
	Confirm.Flags().Bool("watch", false, "poll status until the investigation finishes")

	Status.Flags().String("server", "http://localhost:4000", "doppel server base URL")

	Chat.Flags().String("server", "http://localhost:4000", "doppel server base URL")
	Chat.Flags().String("session", "", "conversation session id")
	Chat.Flags().String("message", "", "message to send to the persona")
}

func postJSON(ctx context.Context, url string, request any, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s: %s", url, resp.Status, strings.TrimSpace(string(payload)))
	}
	if err = json.Unmarshal(payload, response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func getInvestigation(ctx context.Context, server, targetID string) (models.Investigation, error) {
	var investigation models.Investigation
	url := server + "/api/status/" + targetID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return investigation, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return investigation, fmt.Errorf("call %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return investigation, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return investigation, fmt.Errorf("%s returned %s: %s", url, resp.Status, strings.TrimSpace(string(payload)))
	}
	if err = json.Unmarshal(payload, &investigation); err != nil {
		return investigation, fmt.Errorf("decode response: %w", err)
	}
	return investigation, nil
}

func printInvestigation(investigation models.Investigation) {
	fmt.Printf("target:  %s (%s)\n", investigation.TargetName, investigation.TargetID)
	fmt.Printf("status:  %s\n", investigation.Status)
	if investigation.Error != "" {
		fmt.Printf("error:   %s\n", investigation.Error)
	}
	if len(investigation.IdentityCandidates) > 0 && investigation.Status == models.StatusConfirmingIdentity {
		fmt.Println("candidates:")
		for _, candidate := range investigation.IdentityCandidates {
			fmt.Printf("  %s  %s (%d%%) %s\n", candidate.ID, candidate.Name, candidate.Confidence, candidate.Description)
		}
	}
	if investigation.SourcesScraped > 0 {
		fmt.Printf("sources: %d scraped, %d data points\n", investigation.SourcesScraped, investigation.DataPoints)
	}
	if investigation.Persona != nil {
		fmt.Printf("persona: %s\n", investigation.Persona.Identity.FullName)
	}
	if investigation.ConversationID != "" {
		fmt.Printf("session: %s\n", investigation.ConversationID)
	}
}

func watchInvestigation(ctx context.Context, server, targetID string) error {
	lastStatus := models.Status("")
	for {
		investigation, err := getInvestigation(ctx, server, targetID)
		if err != nil {
			return err
		}
		if investigation.Status != lastStatus {
			fmt.Printf("status: %s\n", investigation.Status)
			lastStatus = investigation.Status
		}
		if investigation.Status.Terminal() {
			printInvestigation(investigation)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

var Start = &cobra.Command{
	Use:     "investigate [name]",
	GroupID: "investigate",
	Short:   "Start an investigation",
	Long:    `Starts an investigation into a public figure and prints the identity candidates`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			server, _        = cmd.Flags().GetString("server")
			targetContext, _ = cmd.Flags().GetString("context")
			quick, _         = cmd.Flags().GetBool("quick")
			deep, _          = cmd.Flags().GetBool("deep")
			watch, _         = cmd.Flags().GetBool("watch")
		)
		ctx := context.Background()

		request := map[string]any{
			"targetName":    strings.Join(args, " "),
			"targetContext": targetContext,
			"quickMode":     quick,
		}
		if deep {
			request["depth"] = "deep"
		}

		var investigation models.Investigation
		if err := postJSON(ctx, server+"/api/investigate", request, &investigation); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printInvestigation(investigation)

		if watch && !investigation.Status.Terminal() {
			if err := watchInvestigation(ctx, server, investigation.TargetID); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	},
}

var Confirm = &cobra.Command{
	Use:     "confirm [targetID]",
	GroupID: "investigate",
	Short:   "Confirm an identity candidate",
	Long:    `Confirms or rejects an identity candidate and starts the scraping pipeline`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			server, _            = cmd.Flags().GetString("server")
			candidate, _         = cmd.Flags().GetString("candidate")
			additionalContext, _ = cmd.Flags().GetString("context")
			deny, _              = cmd.Flags().GetBool("deny")
			watch, _             = cmd.Flags().GetBool("watch")
		)
		ctx := context.Background()

		request := map[string]any{
			"targetId":            args[0],
			"confirmed":           !deny,
			"selectedCandidateId": candidate,
			"additionalContext":   additionalContext,
		}

		var investigation models.Investigation
		if err := postJSON(ctx, server+"/api/confirm", request, &investigation); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printInvestigation(investigation)

		if watch && !investigation.Status.Terminal() {
			if err := watchInvestigation(ctx, server, investigation.TargetID); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}
	},
}

var Status = &cobra.Command{
	Use:     "status [targetID]",
	GroupID: "investigate",
	Short:   "Show investigation status",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		server, _ := cmd.Flags().GetString("server")

		investigation, err := getInvestigation(context.Background(), server, args[0])
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		printInvestigation(investigation)
	},
}

var Chat = &cobra.Command{
	Use:     "chat [targetID]",
	GroupID: "investigate",
	Short:   "Chat with a finished persona",
	Long:    `Sends one message to the persona of a ready investigation and prints the reply`,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var (
			server, _  = cmd.Flags().GetString("server")
			session, _ = cmd.Flags().GetString("session")
			message, _ = cmd.Flags().GetString("message")
		)
		if message == "" {
			_, _ = fmt.Fprintln(os.Stderr, "--message is required")
			os.Exit(1)
		}
		request := map[string]any{
			"sessionId": session,
			"message":   message,
		}
		if len(args) == 1 {
			request["targetId"] = args[0]
		}

		var response struct {
			SessionID string `json:"sessionId"`
			Response  string `json:"response"`
		}
		if err := postJSON(context.Background(), server+"/api/chat", request, &response); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("[%s]\n%s\n", response.SessionID, response.Response)
	},
}
