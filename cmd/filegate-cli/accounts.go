package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// callAdmin posts one admin operation and returns the raw response body.
func callAdmin(op string, payload any) []byte {
	if serverURL == "" {
		fmt.Println("Error: Server URL is required (login first)")
		os.Exit(1)
	}
	if token == "" {
		fmt.Println("Error: not logged in")
		os.Exit(1)
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(
		http.MethodPost,
		fmt.Sprintf("%s/api/v1/admin/%s", serverURL, op),
		bytes.NewBuffer(reqBody),
	)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
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
		fmt.Printf("Error: %s failed (%s): %s\n", op, resp.Status, string(body))
		os.Exit(1)
	}
	return body
}

func listAccounts(cmd *cobra.Command, args []string) {
	body := callAdmin("get_accounts", map[string]any{})
	var result struct {
		List []map[string]any `json:"list"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, account := range result.List {
		name, _ := account["username"].(string)
		admin, _ := account["adminActualAccess"].(bool)
		hasPassword, _ := account["hasPassword"].(bool)
		line := name
		if admin {
			line += " (admin)"
		}
		if !hasPassword {
			line += " [no password]"
		}
		fmt.Println(line)
	}
}

func listAdmins(cmd *cobra.Command, args []string) {
	body := callAdmin("get_admins", map[string]any{})
	var result struct {
		List []string `json:"list"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, name := range result.List {
		fmt.Println(name)
	}
}

func accountInfo(cmd *cobra.Command, args []string) {
	payload := map[string]any{}
	if len(args) == 1 {
		payload["username"] = args[0]
	}
	body := callAdmin("get_account", payload)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func addAccount(cmd *cobra.Command, args []string) {
	callAdmin("add_account", map[string]any{"username": args[0]})
	fmt.Printf("Account %s created\n", args[0])
}

func delAccount(cmd *cobra.Command, args []string) {
	callAdmin("del_account", map[string]any{"username": args[0]})
	fmt.Printf("Account %s deleted\n", args[0])
}

func setAdmin(cmd *cobra.Command, args []string) {
	var admin any
	switch args[1] {
	case "true":
		admin = true
	case "false":
		admin = false
	case "clear":
		admin = nil
	default:
		fmt.Println("Error: admin value must be true, false or clear")
		os.Exit(1)
	}

	callAdmin("set_account", map[string]any{
		"username": args[0],
		"changes":  map[string]any{"admin": admin},
	})
	fmt.Printf("Account %s updated\n", args[0])
}

func setPassword(cmd *cobra.Command, args []string) {
	fmt.Print("New password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	callAdmin("change_password_others", map[string]any{
		"username":    args[0],
		"newPassword": string(pw),
	})
	fmt.Printf("Password for %s updated\n", args[0])
}
