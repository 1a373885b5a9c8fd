// ABOUTME: Terminal chat client for claudebot via the HTTP API.
// ABOUTME: Provides readline-style input with slash commands for conversation management.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

// conversationInfo is the JSON shape of a conversation from the API.
type conversationInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// messageInfo is the JSON shape of a message from the API.
type messageInfo struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Claudebot server URL")
	conversationID := flag.String("conversation", "", "Resume an existing conversation by id")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("claudebot-chat connected to %s\n", *server)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := run(ctx, *server, *conversationID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func run(ctx context.Context, server, conversationID string) error {
	// Resume the given conversation or start a fresh one
	if conversationID == "" {
		conv, err := createConversation(ctx, server, "")
		if err != nil {
			return fmt.Errorf("creating conversation: %w", err)
		}
		conversationID = conv.ID
		fmt.Printf("Started conversation %s\n\n", conversationID)
	} else {
		conv, err := getConversation(ctx, server, conversationID)
		if err != nil {
			return fmt.Errorf("resuming conversation: %w", err)
		}
		fmt.Printf("Resumed conversation %q (%s)\n\n", conv.Title, conv.ID)
	}

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if input == "/help" {
			printHelp()
			fmt.Println()
			continue
		}

		if input == "/list" {
			if err := listConversations(ctx, server); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if input == "/history" {
			if err := showHistory(ctx, server, conversationID); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/title") {
			title := strings.TrimSpace(strings.TrimPrefix(input, "/title"))
			if title == "" {
				fmt.Println("Usage: /title <new title>")
			} else if err := renameConversation(ctx, server, conversationID, title); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				fmt.Printf("Renamed to %q\n", title)
			}
			fmt.Println()
			continue
		}

		if strings.HasPrefix(input, "/switch") {
			id := strings.TrimSpace(strings.TrimPrefix(input, "/switch"))
			if id == "" {
				fmt.Println("Usage: /switch <conversation id>")
			} else if conv, err := getConversation(ctx, server, id); err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				conversationID = conv.ID
				fmt.Printf("Switched to %q (%s)\n", conv.Title, conv.ID)
			}
			fmt.Println()
			continue
		}

		if input == "/new" {
			conv, err := createConversation(ctx, server, "")
			if err != nil {
				fmt.Printf("[error] %v\n", err)
			} else {
				conversationID = conv.ID
				fmt.Printf("Started conversation %s\n", conversationID)
			}
			fmt.Println()
			continue
		}

		if err := sendMessage(ctx, server, conversationID, input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
		fmt.Println()
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /list          List conversations")
	fmt.Println("  /history       Show this conversation's history")
	fmt.Println("  /title <text>  Rename this conversation")
	fmt.Println("  /switch <id>   Switch to another conversation")
	fmt.Println("  /new           Start a new conversation")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

func createConversation(ctx context.Context, server, title string) (*conversationInfo, error) {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/api/conversations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, serverError(resp)
	}

	var conv conversationInfo
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &conv, nil
}

func getConversation(ctx context.Context, server, id string) (*conversationInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/api/conversations/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, serverError(resp)
	}

	var conv conversationInfo
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &conv, nil
}

func listConversations(ctx context.Context, server string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/api/conversations", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var convs []conversationInfo
	if err := json.NewDecoder(resp.Body).Decode(&convs); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations")
		return nil
	}

	fmt.Println("Conversations (most recent first):")
	for _, c := range convs {
		fmt.Printf("  %s  %s\n", c.ID, c.Title)
	}
	return nil
}

func renameConversation(ctx context.Context, server, id, title string) error {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, server+"/api/conversations/"+id, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	return nil
}

func showHistory(ctx context.Context, server, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/api/conversations/"+id+"/messages", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}

	var messages []messageInfo
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println("No messages yet")
		return nil
	}

	fmt.Println(strings.Repeat("-", 60))
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			color.New(color.FgBlue).Printf("you: ")
		case "assistant":
			color.New(color.FgGreen).Printf("claude: ")
		default:
			color.New(color.FgHiBlack).Printf("%s: ", msg.Role)
		}
		fmt.Println(msg.Content)
	}
	fmt.Println(strings.Repeat("-", 60))
	return nil
}

func sendMessage(ctx context.Context, server, conversationID, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	url := server + "/api/conversations/" + conversationID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return serverError(resp)
	}

	var assistant messageInfo
	if err := json.NewDecoder(resp.Body).Decode(&assistant); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	color.New(color.FgGreen).Print("claude: ")
	fmt.Println(assistant.Content)
	return nil
}

// serverError extracts the error message from a JSON error response.
func serverError(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
