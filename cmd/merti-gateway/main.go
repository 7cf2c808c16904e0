// ABOUTME: Entry point for the merti-gateway server
// ABOUTME: Serves visitor chat, the knowledge base and the admin API

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/merti-gateway/internal/config"
	"github.com/2389/merti-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                      _   _                    _
  _ __ ___   ___ _ __| |_(_)       __ _  __ _| |_ _____      ____ _ _   _
 | '_ ' _ \ / _ \ '__| __| |_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | | | | | |  __/ |  | |_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_| |_| |_|\___|_|   \__|_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                  |___/                             |___/
`

// getDataPath returns the path to the merti data directory.
// Priority: XDG_DATA_HOME/merti > ~/.local/share/merti
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "merti")
}

func usage() {
	fmt.Println("Usage: merti-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve           Start the gateway server")
	fmt.Println("  init            Create a new config file interactively")
	fmt.Println("  hash-password   Read a password from stdin and print its bcrypt hash")
	fmt.Println("  health          Check gateway liveness")
	fmt.Println("  ready           Check gateway readiness")
	fmt.Println("  version         Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "hash-password":
		err = runHashPassword(os.Stdin, os.Stdout)
	case "health":
		err = runProbe(ctx, "/health")
	case "ready":
		err = runProbe(ctx, "/health/ready")
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Webhook:   %s\n", cfg.Webhook.ChatURL)

	green.Print("    ▶ ")
	fmt.Printf("History:   ")
	if cfg.History.RedisURL != "" {
		cyan.Println("redis")
	} else {
		gray.Println("sqlite")
	}

	green.Print("    ▶ ")
	fmt.Printf("Storage:   ")
	if cfg.Storage.Enabled() {
		cyan.Printf("%s/%s\n", cfg.Storage.Endpoint, cfg.Storage.Bucket)
	} else {
		yellow.Println("disabled")
	}

	green.Print("    ▶ ")
	fmt.Printf("Admin:     ")
	if cfg.Admin.Enabled() {
		cyan.Println(cfg.Admin.Email)
	} else {
		yellow.Println("disabled")
	}
	fmt.Println()

	logger.Info("starting merti-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runProbe(ctx context.Context, path string) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

// runHashPassword prints the bcrypt hash of the first line read from in.
func runHashPassword(in io.Reader, out io.Writer) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading password: %w", err)
	}
	hash, err := hashPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// newJWTSecret returns 32 random bytes, base64 encoded.
func newJWTSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

// initAnswers is everything runInit asks for.
type initAnswers struct {
	HTTPAddr     string
	DBPath       string
	ChatURL      string
	ScrapeURL    string
	RedisURL     string
	AdminEmail   string
	PasswordHash string
	JWTSecret    string
	LogLevel     string
	LogFormat    string
}

// renderConfig produces the YAML written by runInit.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# merti-gateway configuration\n")
	cfg.WriteString("# Generated by merti-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", a.HTTPAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", a.DBPath))

	cfg.WriteString("webhook:\n")
	cfg.WriteString(fmt.Sprintf("  chat_url: %q\n", a.ChatURL))
	cfg.WriteString(fmt.Sprintf("  scrape_url: %q\n", a.ScrapeURL))
	cfg.WriteString("  timeout: \"60s\"\n\n")

	if a.RedisURL != "" {
		cfg.WriteString("history:\n")
		cfg.WriteString(fmt.Sprintf("  redis_url: %q\n", a.RedisURL))
		cfg.WriteString("  ttl: \"24h\"\n\n")
	}

	cfg.WriteString("# storage:\n")
	cfg.WriteString("#   endpoint: \"https://<project>.supabase.co/storage/v1/s3\"\n")
	cfg.WriteString("#   bucket: \"test_images\"\n")
	cfg.WriteString("#   access_key: \"${MERTI_S3_ACCESS_KEY}\"\n")
	cfg.WriteString("#   secret_key: \"${MERTI_S3_SECRET_KEY}\"\n\n")

	if a.AdminEmail != "" {
		cfg.WriteString("admin:\n")
		cfg.WriteString(fmt.Sprintf("  email: %q\n", a.AdminEmail))
		cfg.WriteString(fmt.Sprintf("  password_hash: %q\n", a.PasswordHash))
		cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n\n", a.JWTSecret))
	}

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.LogFormat))
	return cfg.String()
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("merti-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, "Config file path", config.DefaultPath())
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	var a initAnswers

	fmt.Println("\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, "HTTP address", config.DefaultHTTPAddr)

	fmt.Println("\n--- Database Configuration ---")
	a.DBPath = prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Webhook Configuration ---")
	a.ChatURL = prompt(reader, "Chat webhook URL", "")
	a.ScrapeURL = prompt(reader, "Scrape webhook URL", "")

	fmt.Println("\n--- History Configuration ---")
	a.RedisURL = prompt(reader, "Redis URL (leave empty to keep history in SQLite)", "")

	fmt.Println("\n--- Admin Configuration ---")
	a.AdminEmail = prompt(reader, "Admin email (leave empty to disable the admin API)", "")
	if a.AdminEmail != "" {
		password := prompt(reader, "Admin password", "")
		hash, err := hashPassword(password)
		if err != nil {
			return err
		}
		a.PasswordHash = hash
		if a.JWTSecret, err = newJWTSecret(); err != nil {
			return err
		}
	}

	fmt.Println("\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, "Log format (text/json)", "text")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// 0600 because the file may hold the admin hash and JWT secret.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\n  ✓ Config written to %s\n", outputFile)
	fmt.Printf("  Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Println("  merti-gateway serve")
	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
