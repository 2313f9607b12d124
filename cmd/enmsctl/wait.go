package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netops-labs/enms-in-go/pkg/httpclient"
	"github.com/netops-labs/enms-in-go/pkg/server/endpoints"
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the server to be ready",
	Long: `Wait for the server to be ready by polling /rest/is_alive.

Example:
  enmsctl wait
  enmsctl wait --port 8080 --retries 60`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		retries, _ := cmd.Flags().GetInt("retries")

		if err := waitForServer(port, retries); err != nil {
			fmt.Fprintf(os.Stderr, "Server did not become ready: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("eNMS is ready")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(endpoints.Version)
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(versionCmd)
	port, err := strconv.Atoi(defaultPort())
	if err != nil {
		port = 5000
	}
	waitCmd.Flags().IntP("port", "p", port, "Server port to check")
	waitCmd.Flags().IntP("retries", "r", 90, "Number of retries")
}

func waitForServer(port, retries int) error {
	url := fmt.Sprintf("http://localhost:%d/rest/is_alive", port)
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	client := httpclient.New(httpclient.Options{PoolSize: 1, Timeout: 2 * time.Second}, log).Pooled()

	fmt.Println("Waiting for eNMS to be ready...")
	for i := 0; i < retries; i++ {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == 200 {
				fmt.Println()
				return nil
			}
		}
		fmt.Print(".")
		time.Sleep(time.Second)
	}
	fmt.Println()
	return fmt.Errorf("eNMS is not ready after %d seconds", retries)
}
