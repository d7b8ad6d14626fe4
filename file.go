package geminidev

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cixtor/readability"
)

func MessageFromFile(path string) (message string, tokenLen int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	message = contextBlock(filepath.Base(path), string(data))
	return message, GuessTokens(message), nil
}

// MessageFromFiles walks a directory and concatenates every non-hidden file
// as context.
func (c *Client) MessageFromFiles(path string) (string, int, error) {
	message := ""
	totalTokenLength := 0

	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Ignore hidden files
		if name := filepath.Base(path); name != "." && strings.HasPrefix(name, ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			m := contextBlock(path, string(data))
			tl := GuessTokens(m)
			c.Info("Tokens: %d -> %s", tl, path)
			message += m
			totalTokenLength += tl
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return message, totalTokenLength, nil
}

// MessageFromURL downloads a web page and keeps only its readable text.
func MessageFromURL(ctx context.Context, client *http.Client, url string) (message string, tokenLen int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}
	article, err := readability.New().Parse(resp.Body, url)
	if err != nil {
		return "", 0, fmt.Errorf("extracting text from %s: %w", url, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	message = contextBlock(url, text)
	return message, GuessTokens(message), nil
}

// ContextMessage loads context from a URL, a directory or a single file.
func (c *Client) ContextMessage(ctx context.Context, source string) (string, int, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return MessageFromURL(ctx, c.httpClient, source)
	}
	info, err := os.Stat(source)
	if err != nil {
		return "", 0, err
	}
	if info.IsDir() {
		return c.MessageFromFiles(source)
	}
	return MessageFromFile(source)
}

func contextBlock(name, content string) string {
	return fmt.Sprintf("--- CONTEXT FROM FILE: %s ---\n```\n%s\n```\n", name, content)
}

// MessageToFile writes content to path, creating missing parent directories.
func MessageToFile(content string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(file, content); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func GuessTokens(input string) int {
	return len(input) / 4
}
