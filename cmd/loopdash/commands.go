package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/jaakkos/loopdash/internal/markdown"
	"github.com/jaakkos/loopdash/internal/policy"
	"github.com/jaakkos/loopdash/internal/status"
)

// runRenderCommand implements "loopdash render [file]".
func runRenderCommand(args []string) {
	var in io.Reader = os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}
	if err := renderMarkdown(in, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func renderMarkdown(in io.Reader, out io.Writer) error {
	src, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if _, err := out.Write(markdown.RenderBytes(src)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// runGenerateTokenCommand implements "loopdash generate-token".
func runGenerateTokenCommand() {
	cfg := loadConfig(log.New(os.Stderr, "", 0))
	pol := policy.New(cfg)

	path := pol.TokenFilePath()
	tok, err := writeToken(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "Token written to %s\n", path)
}

// writeToken stores a fresh random token at path, readable by the owner only.
func writeToken(path string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(tok+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	return tok, nil
}

// runStatusCommand implements "loopdash status", a one-line summary for scripts.
func runStatusCommand() {
	cfg := loadConfig(log.New(os.Stderr, "", 0))
	reader := status.NewReader(policy.New(cfg))
	fmt.Println(statusLine(reader.Gather()))
}

func statusLine(snap status.Snapshot) string {
	return fmt.Sprintf("engine=%s state=%s loops=%s errors=%s paused=%v",
		snap.Engine.Active, snap.Loop.State, snap.Loop.LoopCount, snap.Loop.ErrorCount, snap.Loop.Paused)
}
