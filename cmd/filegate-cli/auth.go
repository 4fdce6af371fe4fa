package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// CLIConfig is the saved CLI session
type CLIConfig struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	Token     string `json:"token"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the server",
	Run:   login,
}

func login(cmd *cobra.Command, args []string) {
	if serverURL == "" {
		fmt.Println("Error: Server URL is required")
		os.Exit(1)
	}

	if username == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&username)
	}

	if password == "" {
		fmt.Print("Password: ")
		fmt.Scanln(&password)
	}

	reqBody, err := json.Marshal(LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/login", serverURL),
		"application/json",
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: login failed (%s): %s\n", resp.Status, string(body))
		os.Exit(1)
	}

	var loginResp LoginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	token = loginResp.Token
	saveCLIConfig()

	fmt.Printf("Logged in as %s (admin: %v)\n", loginResp.Username, loginResp.Admin)
}

func cliConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return filepath.Join(os.Getenv("HOME"), ".filegate", "cli.json")
}

func loadCLIConfig() {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return
	}
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	if username == "" {
		username = cfg.Username
	}
	if token == "" {
		token = cfg.Token
	}
}

func saveCLIConfig() {
	path := cliConfigPath()
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	data, err := json.MarshalIndent(CLIConfig{
		ServerURL: serverURL,
		Username:  username,
		Token:     token,
	}, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0600)
}
