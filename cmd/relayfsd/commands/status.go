package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/marmos91/relayfs/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	statusOutput string
	statusPort   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the relayfsd server by calling its
readiness endpoint and reporting session counts.

Examples:
  # Check status (uses default port)
  relayfsd status

  # Check status with custom port
  relayfsd status --port 9080

  # Output as JSON
  relayfsd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusPort, "port", 8080, "relayfsd WS server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus reports whether the server answered its readiness probe.
type ServerStatus struct {
	Running       bool   `json:"running" yaml:"running"`
	Healthy       bool   `json:"healthy" yaml:"healthy"`
	Message       string `json:"message" yaml:"message"`
	OnlineUsers   int    `json:"online_users,omitempty" yaml:"online_users,omitempty"`
	OnlineClients int    `json:"online_clients,omitempty" yaml:"online_clients,omitempty"`
}

type readinessResponse struct {
	Status        string `json:"status"`
	OnlineUsers   int    `json:"online_users"`
	OnlineClients int    `json:"online_clients"`
	Error         string `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{Message: "Server is not running"}

	readyURL := fmt.Sprintf("http://localhost:%d/health/ready", statusPort)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(readyURL)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var ready readinessResponse
		if err := json.NewDecoder(resp.Body).Decode(&ready); err == nil {
			status.Running = true
			status.Healthy = ready.Status == "ok"
			status.OnlineUsers = ready.OnlineUsers
			status.OnlineClients = ready.OnlineClients
			if status.Healthy {
				status.Message = "Server is running and ready"
			} else {
				status.Message = fmt.Sprintf("Server is running but not ready: %s", ready.Error)
			}
		} else {
			status.Running = true
			status.Message = "Server is running but readiness response invalid"
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("relayfsd Server Status")
	fmt.Println("=======================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:          \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:          \033[33m● Running (not ready)\033[0m\n")
		}
		fmt.Printf("  Online users:    %d\n", status.OnlineUsers)
		fmt.Printf("  Online clients:  %d\n", status.OnlineClients)
	} else {
		fmt.Printf("  Status:          \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
