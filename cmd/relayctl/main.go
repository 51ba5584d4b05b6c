// Command relayctl prints quick, human-readable summaries of the relay's
// connection records over its REST API. It lists records with live
// status, shows chat and log history for one connection, and can
// terminate a running bot.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/crafthub/craftrelay/storage"
)

var addr = flag.String("addr", envDefault("RELAY_ADDR", "http://localhost:3000"), "Base URL of the relay server")

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] COMMAND [ARGS]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  list              List connection records with live status\n")
	fmt.Fprintf(os.Stderr, "  show ID           Show one connection record\n")
	fmt.Fprintf(os.Stderr, "  messages ID       Print chat history for a connection\n")
	fmt.Fprintf(os.Stderr, "  logs ID           Print lifecycle log for a connection\n")
	fmt.Fprintf(os.Stderr, "  terminate ID      Stop the live bot and delete the record\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &apiClient{
		baseURL:    strings.TrimRight(*addr, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	switch args[0] {
	case "list":
		err = runList(client)
	case "show":
		err = withID(args, func(id string) error { return runShow(client, id) })
	case "messages":
		err = withID(args, func(id string) error { return runMessages(client, id) })
	case "logs":
		err = withID(args, func(id string) error { return runLogs(client, id) })
	case "terminate":
		err = withID(args, func(id string) error { return runTerminate(client, id) })
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withID(args []string, fn func(id string) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires a connection id", args[0])
	}
	return fn(args[1])
}

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *apiClient) get(path string, result interface{}) error {
	return c.call("GET", path, result)
}

func (c *apiClient) call(method, path string, result interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// connectionStatus mirrors the admin list response.
type connectionStatus struct {
	storage.Connection
	IsActive bool `json:"isActive"`
}

func runList(c *apiClient) error {
	var connections []connectionStatus
	if err := c.get("/api/admin/connections", &connections); err != nil {
		return err
	}

	fmt.Printf("%d connection(s)\n\n", len(connections))
	for _, conn := range connections {
		fmt.Print(formatConnectionLine(conn))
	}
	return nil
}

func runShow(c *apiClient, id string) error {
	var conn storage.Connection
	if err := c.get("/api/connections/"+id, &conn); err != nil {
		return err
	}

	fmt.Printf("ID:        %s\n", conn.ID)
	fmt.Printf("Username:  %s\n", conn.Username)
	fmt.Printf("Server:    %s\n", conn.ServerIP)
	fmt.Printf("Version:   %s\n", conn.Version)
	fmt.Printf("Auth:      %s\n", conn.AuthMode)
	fmt.Printf("Connected: %v\n", conn.IsConnected)
	fmt.Printf("Ping:      %dms\n", conn.LastPing)
	fmt.Printf("Created:   %s\n", conn.CreatedAt.Format(time.RFC3339))
	return nil
}

func runMessages(c *apiClient, id string) error {
	var messages []storage.ChatMessage
	if err := c.get("/api/connections/"+id+"/messages", &messages); err != nil {
		return err
	}

	for _, msg := range messages {
		fmt.Print(formatMessageLine(msg))
	}
	return nil
}

func runLogs(c *apiClient, id string) error {
	var logs []storage.Log
	if err := c.get("/api/connections/"+id+"/logs", &logs); err != nil {
		return err
	}

	for _, entry := range logs {
		fmt.Printf("[%s] %-7s %s\n",
			entry.Timestamp.Format("15:04:05"), strings.ToUpper(entry.Level), entry.Message)
	}
	return nil
}

func runTerminate(c *apiClient, id string) error {
	var response map[string]string
	if err := c.call("DELETE", "/api/admin/connections/"+id, &response); err != nil {
		return err
	}
	fmt.Println(response["message"])
	return nil
}

func formatConnectionLine(conn connectionStatus) string {
	status := "idle"
	if conn.IsActive {
		status = "ACTIVE"
	}
	return fmt.Sprintf("%-36s  %-16s  %-24s  %-8s  %s\n",
		conn.ID, conn.Username, conn.ServerIP, conn.Version, status)
}

func formatMessageLine(msg storage.ChatMessage) string {
	stamp := msg.Timestamp.Format("15:04:05")
	switch msg.MessageType {
	case storage.MessageChat, storage.MessageConsole:
		return fmt.Sprintf("[%s] <%s> %s\n", stamp, msg.Username, msg.Message)
	default:
		return fmt.Sprintf("[%s] * %s\n", stamp, msg.Message)
	}
}
