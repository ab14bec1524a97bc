package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/atinyakov/credkeeper/internal/client/api"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and dispatches to the register or login commands.
func main() {
	var (
		cmd      string
		baseURL  string
		caFile   string
		loginStr string
		showVer  bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: register | login")
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&caFile, "ca", "", "path to CA cert for HTTPS servers")
	flag.StringVar(&loginStr, "login", "", "username")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("credkeeper client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	if cmd != "register" && cmd != "login" {
		log.Fatalf("unknown command: %q (want register or login)", cmd)
	}
	if loginStr == "" {
		log.Fatal("please provide -login=username")
	}

	client, err := api.New(baseURL, caFile)
	if err != nil {
		log.Fatal(err)
	}

	password, err := api.PromptPassword(os.Stdout, "Password: ")
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "register":
		info, err := client.Register(ctx, loginStr, password)
		if err != nil {
			log.Fatal(err)
		}
		printInfo("Registered", info)
	case "login":
		info, err := client.Login(ctx, loginStr, password)
		if err != nil {
			log.Fatal(err)
		}
		printInfo("Logged in", info)
	}
}

func printInfo(what string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("%s:\n%s\n", what, b)
}
