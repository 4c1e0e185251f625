// Command smoke drives a running server through a short story session.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func baseURL() string {
	if u := os.Getenv("INKWELL_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func main() {
	fmt.Println("Starting smoke test...")

	var story struct {
		ID string `json:"id"`
	}
	title := fmt.Sprintf("Smoke %d", time.Now().Unix())
	step("Create story", http.MethodPost, "/stories", map[string]string{"title": title}, &story)
	prefix := "/stories/" + story.ID

	step("Save world", http.MethodPut, prefix+"/stages/world",
		map[string]string{"content": "A drowned city where bells ring under the water."}, nil)
	step("Save characters", http.MethodPut, prefix+"/stages/characters",
		map[string]string{"content": "Ana, a diver who hears the bells."}, nil)
	step("Save outline", http.MethodPut, prefix+"/outline", map[string]any{
		"outline":     "## Chapter 1: The Bell\n**Summary:** Ana hears a bell.\n**Key Events:**\n* The dive\n",
		"numChapters": 1,
	}, nil)
	step("Parse outline", http.MethodGet, prefix+"/outline/chapters", nil, nil)

	fmt.Println("Streaming chapter 1...")
	if !stream(prefix+"/chat/chapter", map[string]any{"chapterNumber": 1, "saveDraft": true}) {
		fmt.Println("FAILED: Stream chapter")
		os.Exit(1)
	}
	fmt.Println("PASSED: Stream chapter")

	var session struct {
		SessionID string `json:"sessionId"`
	}
	step("Open mind map session", http.MethodPost, prefix+"/mindmap/sessions", nil, &session)
	step("Generate mind map", http.MethodPost, "/mindmap/sessions/"+session.SessionID+"/generate", nil, nil)
	step("Save mind map", http.MethodPost, "/mindmap/sessions/"+session.SessionID+"/save", nil, nil)
	step("Read mind map", http.MethodGet, prefix+"/mindmap", nil, nil)
}

func step(name, method, endpoint string, payload, out any) {
	fmt.Printf("%s...\n", name)
	if !sendRequest(method, endpoint, payload, out) {
		fmt.Printf("FAILED: %s\n", name)
		os.Exit(1)
	}
	fmt.Printf("PASSED: %s\n", name)
}

func newRequest(method, endpoint string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		jsonBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL()+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func sendRequest(method, endpoint string, payload, out any) bool {
	req, err := newRequest(method, endpoint, payload)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	return true
}

// stream prints a chat answer as it arrives.
func stream(endpoint string, payload any) bool {
	req, err := newRequest(http.MethodPost, endpoint, payload)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		fmt.Printf("\nError reading stream: %v\n", err)
		return false
	}
	fmt.Println()

	if msg := resp.Trailer.Get("X-Stream-Error"); msg != "" {
		fmt.Printf("Stream failed: %s\n", msg)
		return false
	}
	return true
}
